// Package traveler holds one traveler's editable intake state.
package traveler

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"visaintake/internal/intake/models"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/schema"
	dErrors "visaintake/pkg/domain-errors"
	pkgstrings "visaintake/pkg/platform/strings"
)

// DefaultMaxFileSize is the per-document upload ceiling.
const DefaultMaxFileSize int64 = 5 << 20

// FieldValidator produces field-level problems for identity values.
type FieldValidator interface {
	Validate(id models.Identity, vt models.VisaType) []dErrors.FieldError
}

var defaultSchema = sync.OnceValue(func() *schema.Schema { return schema.New() })

// SubForm is one traveler's form. It is safe for concurrent use; the change hook
// runs after the form lock is released.
type SubForm struct {
	mu       sync.RWMutex
	id       int
	remoteID string
	identity models.Identity
	visaType models.VisaType
	docs     models.DocumentSet

	policy      *policy.Policy
	validator   FieldValidator
	maxFileSize int64
	now         func() time.Time
	onChange    func()
}

// Option configures a SubForm.
type Option func(*SubForm)

// WithPolicy sets the document table.
func WithPolicy(p *policy.Policy) Option {
	return func(f *SubForm) {
		if p != nil {
			f.policy = p
		}
	}
}

// WithValidator replaces the identity field rules.
func WithValidator(v FieldValidator) Option {
	return func(f *SubForm) {
		if v != nil {
			f.validator = v
		}
	}
}

// WithMaxFileSize sets the upload ceiling in bytes.
func WithMaxFileSize(n int64) Option {
	return func(f *SubForm) {
		if n > 0 {
			f.maxFileSize = n
		}
	}
}

// WithClock sets the time source for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *SubForm) {
		if now != nil {
			f.now = now
		}
	}
}

// New returns an empty form with general document slots and no visa type.
func New(id int, opts ...Option) *SubForm {
	f := &SubForm{
		id:          id,
		policy:      policy.Default(),
		maxFileSize: DefaultMaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.validator == nil {
		f.validator = defaultSchema()
	}

	general, _ := f.policy.DocumentsFor(models.VisaTypeUnset)
	f.docs = models.DocumentSet{
		General:  models.NewDocuments(general),
		Specific: models.Specific{Kind: models.VisaTypeUnset},
	}
	return f
}

// Record seeds a form from an application already stored by the backend.
// Files are keyed by document field key; keys the policy does not know are ignored.
type Record struct {
	RemoteID string
	Identity models.Identity
	VisaType models.VisaType
	Files    map[string]models.File
}

// FromRecord builds a form pre-filled from rec. Remote files count as satisfied.
func FromRecord(id int, rec Record, opts ...Option) *SubForm {
	f := New(id, opts...)
	f.remoteID = rec.RemoteID
	f.identity = rec.Identity
	f.identity.Phones = pkgstrings.DedupeBy(rec.Identity.Phones, pkgstrings.PhoneKey)
	if rec.VisaType.IsKnown() {
		f.resetSpecific(rec.VisaType)
	}
	for key, file := range rec.Files {
		if slot, ok := f.docs.Lookup(key); ok {
			slot.Attach(file, time.Time{})
		}
	}
	return f
}

// ID returns the process-local traveler id.
func (f *SubForm) ID() int { return f.id }

// RemoteID returns the backend id, empty for travelers not yet stored.
func (f *SubForm) RemoteID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.remoteID
}

// OnChange installs the hook called after every mutation. Passing nil removes it.
func (f *SubForm) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// SetField sets one identity field by name. "phones" takes a comma-separated list
// and "visaType" behaves like SetVisaType.
func (f *SubForm) SetField(name, value string) error {
	return f.SetFields(map[string]string{name: value})
}

// SetFields sets several fields at once. Every name and the visa type are checked
// before anything is applied, so a rejected update leaves the form unchanged.
func (f *SubForm) SetFields(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	vt, hasType := models.VisaTypeUnset, false
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		switch name {
		case models.FieldGivenName, models.FieldSurname, models.FieldEmail,
			models.FieldAddress, models.FieldNotes, models.FieldPhones:
		case models.FieldVisaType:
			parsed, err := models.ParseVisaType(fields[name])
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown visa type")
			}
			vt, hasType = parsed, true
		default:
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown field %q", name))
		}
	}

	f.mu.Lock()
	for name, value := range fields {
		switch name {
		case models.FieldGivenName:
			f.identity.GivenName = value
		case models.FieldSurname:
			f.identity.Surname = value
		case models.FieldEmail:
			f.identity.Email = value
		case models.FieldAddress:
			f.identity.Address = value
		case models.FieldNotes:
			f.identity.Notes = value
		case models.FieldPhones:
			f.identity.Phones = pkgstrings.DedupeBy(strings.Split(value, ","), pkgstrings.PhoneKey)
		}
	}
	if hasType && vt != f.visaType {
		f.resetSpecific(vt)
	}
	hook := f.onChange
	f.mu.Unlock()

	notify(hook)
	return nil
}

// SetPhones replaces the phone numbers. Blank and repeated numbers are dropped.
func (f *SubForm) SetPhones(phones ...string) error {
	f.mu.Lock()
	f.identity.Phones = pkgstrings.DedupeBy(phones, pkgstrings.PhoneKey)
	hook := f.onChange
	f.mu.Unlock()

	notify(hook)
	return nil
}

// SetVisaType switches the type-specific document map. Files attached for the
// previous type are discarded and the new type starts with empty slots. General
// documents are untouched. Re-selecting the current type changes nothing.
func (f *SubForm) SetVisaType(vt models.VisaType) error {
	if vt != models.VisaTypeUnset && !vt.IsKnown() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown visa type %q", string(vt)))
	}

	f.mu.Lock()
	if f.visaType == vt {
		f.mu.Unlock()
		return nil
	}
	f.resetSpecific(vt)
	hook := f.onChange
	f.mu.Unlock()

	notify(hook)
	return nil
}

func (f *SubForm) resetSpecific(vt models.VisaType) {
	f.visaType = vt
	_, specific := f.policy.DocumentsFor(vt)
	f.docs.Specific = models.Specific{Kind: vt, Slots: models.NewDocuments(specific)}
}

// SetDocument attaches file to the slot for key. A file over the size ceiling is
// rejected with CodeFileTooLarge and the slot keeps its previous content.
func (f *SubForm) SetDocument(key string, file models.File) error {
	return f.SetDocumentAt(key, file, f.now())
}

// SetDocumentAt is SetDocument with an explicit upload time.
func (f *SubForm) SetDocumentAt(key string, file models.File, at time.Time) error {
	if file == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "file is required")
	}

	f.mu.Lock()
	slot, ok := f.docs.Lookup(key)
	if !ok {
		vt := f.visaType
		f.mu.Unlock()
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no document %q for visa type %s", key, vt))
	}
	if file.Size() > f.maxFileSize {
		f.mu.Unlock()
		return dErrors.New(dErrors.CodeFileTooLarge,
			fmt.Sprintf("%s is %d bytes; the limit is %d bytes", file.Name(), file.Size(), f.maxFileSize))
	}
	slot.Attach(file, at)
	hook := f.onChange
	f.mu.Unlock()

	notify(hook)
	return nil
}

// ClearDocument empties the slot for key.
func (f *SubForm) ClearDocument(key string) error {
	f.mu.Lock()
	slot, ok := f.docs.Lookup(key)
	if !ok {
		f.mu.Unlock()
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no document %q", key))
	}
	slot.Clear()
	hook := f.onChange
	f.mu.Unlock()

	notify(hook)
	return nil
}

// IsValid reports whether identity fields pass the schema, a visa type is set and
// every required slot of the general and active specific documents holds a file.
func (f *SubForm) IsValid() bool {
	return len(f.Problems()) == 0
}

// Problems lists field errors followed by missing required documents.
// Document problems are named "<documentsField>.<key>", for example
// "generalDocuments.passportCopy".
func (f *SubForm) Problems() []dErrors.FieldError {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.problemsLocked()
}

func (f *SubForm) problemsLocked() []dErrors.FieldError {
	problems := f.validator.Validate(f.identity, f.visaType)
	for _, d := range f.docs.General.MissingRequired() {
		problems = append(problems, missing("generalDocuments", d))
	}
	if f.visaType.IsKnown() {
		for _, d := range f.docs.Specific.Slots.MissingRequired() {
			problems = append(problems, missing(f.visaType.DocumentsField(), d))
		}
	}
	return problems
}

func missing(group string, d models.Descriptor) dErrors.FieldError {
	return dErrors.FieldError{Field: group + "." + d.FieldKey, Message: d.Label + " is required"}
}

// Values returns a snapshot that later edits do not affect.
func (f *SubForm) Values() models.TravelerRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.valuesLocked()
}

// Snapshot returns the values and their problems as of one instant.
func (f *SubForm) Snapshot() (models.TravelerRecord, []dErrors.FieldError) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.valuesLocked(), f.problemsLocked()
}

func (f *SubForm) valuesLocked() models.TravelerRecord {
	id := f.identity
	id.Phones = append([]string(nil), f.identity.Phones...)
	return models.TravelerRecord{
		ID:        f.id,
		RemoteID:  f.remoteID,
		Identity:  id,
		VisaType:  f.visaType,
		Documents: f.docs.Clone(),
	}
}

func notify(hook func()) {
	if hook != nil {
		hook()
	}
}
