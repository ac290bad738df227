package models

import "time"

// Descriptor describes one document slot as the policy defines it.
type Descriptor struct {
	Ordinal  int    `json:"ordinal" yaml:"-"`
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
	FieldKey string `json:"field_key" yaml:"key"`
}

// Slot is one uploadable document. Uploaded is true exactly when a file is held;
// Attach and Clear are the only mutators.
type Slot struct {
	desc        Descriptor
	ref         File
	displayName string
	uploaded    bool
	sizeBytes   int64
	uploadedAt  time.Time
}

// NewSlot returns an empty slot for d.
func NewSlot(d Descriptor) *Slot {
	return &Slot{desc: d}
}

// Attach stores f in the slot. A nil file clears it.
func (s *Slot) Attach(f File, at time.Time) {
	if f == nil {
		s.Clear()
		return
	}
	s.ref = f
	s.uploaded = true
	s.displayName = f.Name()
	s.sizeBytes = f.Size()
	s.uploadedAt = at
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.ref = nil
	s.uploaded = false
	s.displayName = ""
	s.sizeBytes = 0
	s.uploadedAt = time.Time{}
}

// Satisfied reports whether the slot holds a file.
func (s *Slot) Satisfied() bool { return s.uploaded && s.ref != nil }

func (s *Slot) Descriptor() Descriptor { return s.desc }
func (s *Slot) Key() string            { return s.desc.FieldKey }
func (s *Slot) Required() bool         { return s.desc.Required }
func (s *Slot) File() File             { return s.ref }
func (s *Slot) DisplayName() string    { return s.displayName }
func (s *Slot) Uploaded() bool         { return s.uploaded }
func (s *Slot) SizeBytes() int64       { return s.sizeBytes }
func (s *Slot) UploadedAt() time.Time  { return s.uploadedAt }

func (s *Slot) clone() *Slot {
	c := *s
	return &c
}
