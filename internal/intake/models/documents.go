package models

// Documents is an ordered set of slots, in policy order.
type Documents []*Slot

// NewDocuments builds empty slots for descs.
func NewDocuments(descs []Descriptor) Documents {
	docs := make(Documents, 0, len(descs))
	for _, d := range descs {
		docs = append(docs, NewSlot(d))
	}
	return docs
}

// Get returns the slot for key.
func (d Documents) Get(key string) (*Slot, bool) {
	for _, s := range d {
		if s.Key() == key {
			return s, true
		}
	}
	return nil, false
}

// MissingRequired returns the required slots that hold no file.
func (d Documents) MissingRequired() []Descriptor {
	var missing []Descriptor
	for _, s := range d {
		if s.Required() && !s.Satisfied() {
			missing = append(missing, s.Descriptor())
		}
	}
	return missing
}

// Satisfied returns the slots holding a file.
func (d Documents) Satisfied() Documents {
	var out Documents
	for _, s := range d {
		if s.Satisfied() {
			out = append(out, s)
		}
	}
	return out
}

func (d Documents) clone() Documents {
	if d == nil {
		return nil
	}
	out := make(Documents, len(d))
	for i, s := range d {
		out[i] = s.clone()
	}
	return out
}

// Specific is the one type-specific document map a traveler may hold.
// Kind is VisaTypeUnset when no type is selected.
type Specific struct {
	Kind  VisaType
	Slots Documents
}

// DocumentSet holds the general documents and at most one type-specific map.
// Exclusivity holds by construction: there is only one Specific.
type DocumentSet struct {
	General  Documents
	Specific Specific
}

// Lookup finds a slot by key in the general documents, then the specific map.
func (ds DocumentSet) Lookup(key string) (*Slot, bool) {
	if s, ok := ds.General.Get(key); ok {
		return s, true
	}
	return ds.Specific.Slots.Get(key)
}

// For returns the specific slots when Kind matches vt, else nil.
func (ds DocumentSet) For(vt VisaType) Documents {
	if vt == VisaTypeUnset || ds.Specific.Kind != vt {
		return nil
	}
	return ds.Specific.Slots
}

func (ds DocumentSet) Business() Documents  { return ds.For(VisaTypeBusiness) }
func (ds DocumentSet) Student() Documents   { return ds.For(VisaTypeStudent) }
func (ds DocumentSet) JobHolder() Documents { return ds.For(VisaTypeJobHolder) }
func (ds DocumentSet) Other() Documents     { return ds.For(VisaTypeOther) }

// All returns general slots followed by specific slots.
func (ds DocumentSet) All() Documents {
	out := make(Documents, 0, len(ds.General)+len(ds.Specific.Slots))
	out = append(out, ds.General...)
	return append(out, ds.Specific.Slots...)
}

// Clone deep-copies the slots. Files are shared; they are never mutated.
func (ds DocumentSet) Clone() DocumentSet {
	return DocumentSet{
		General:  ds.General.clone(),
		Specific: Specific{Kind: ds.Specific.Kind, Slots: ds.Specific.Slots.clone()},
	}
}
