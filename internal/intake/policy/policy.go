// Package policy maps a visa type onto the document slots it requires.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"visaintake/internal/intake/models"
)

// Policy is an immutable document table. Lookups return copies.
type Policy struct {
	general  []models.Descriptor
	specific map[models.VisaType][]models.Descriptor
}

// DocumentsFor returns the general and type-specific descriptors for vt, in order.
// It is total: unset, other and unrecognised types get an empty specific list.
func (p *Policy) DocumentsFor(vt models.VisaType) (general, specific []models.Descriptor) {
	general = append([]models.Descriptor(nil), p.general...)
	specific = append([]models.Descriptor{}, p.specific[vt]...)
	return general, specific
}

// Describe returns the descriptor for key under vt, searching general documents first.
func (p *Policy) Describe(vt models.VisaType, key string) (models.Descriptor, bool) {
	for _, d := range p.general {
		if d.FieldKey == key {
			return d, true
		}
	}
	for _, d := range p.specific[vt] {
		if d.FieldKey == key {
			return d, true
		}
	}
	return models.Descriptor{}, false
}

// Default is the document table the intake desk works from.
func Default() *Policy {
	return mustBuild(table{
		General: []entry{
			{Key: "passportCopy", Label: "Passport Scanned Copy (JPG)", Required: true},
			{Key: "passportPhoto", Label: "Recent Passport Size Photo (JPG)", Required: true},
			{Key: "bankStatement", Label: "Bank Statement of the last 06 months (PDF)", Required: true},
			{Key: "bankSolvency", Label: "Bank Solvency Certificate (PDF)", Required: true},
			{Key: "hotelBooking", Label: "Hotel Booking Copy"},
			{Key: "airTicket", Label: "Air Ticket Booking Copy"},
			{Key: "previousVisa", Label: "Previous Visa Copy"},
			{Key: "marriageCertificate", Label: "Marriage Certificate or Nikahnama"},
		},
		Specific: map[string][]entry{
			"business": {
				{Key: "tradeLicense", Label: "Valid Trade License copy with notary public (English translated)", Required: true},
				{Key: "companyPad", Label: "Company Pad / Letter Head Pad", Required: true},
				{Key: "visitingCard", Label: "Visiting Card"},
				{Key: "memorandum", Label: "Memorandum for Limited Company"},
			},
			"student": {
				{Key: "studentId", Label: "Student ID Card", Required: true},
				{Key: "birthCertificate", Label: "Birth Certificate (child and infant only)"},
				{Key: "leaveLetter", Label: "Leave Letter from the Educational Institute"},
			},
			"jobHolder": {
				{Key: "nocCertificate", Label: "NOC Certificate", Required: true},
				{Key: "officialId", Label: "Office ID card copy", Required: true},
				{Key: "visitingCard", Label: "Visiting Card Copy"},
				{Key: "salaryCertificate", Label: "Salary Certificate"},
				{Key: "bmdcCertificate", Label: "BMDC Certificate of Doctors"},
				{Key: "barCouncilCertificate", Label: "Bar Council Certificate"},
				{Key: "notarizedId", Label: "Notarized GO with an English translation"},
			},
			"other": {},
		},
	})
}

// table is the YAML shape of a policy override file.
type table struct {
	General  []entry            `yaml:"general"`
	Specific map[string][]entry `yaml:"specific"`
}

type entry struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	Required bool   `yaml:"required"`
}

// LoadFile reads a policy override from a YAML file.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML policy.
func Parse(data []byte) (*Policy, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return build(t)
}

func mustBuild(t table) *Policy {
	p, err := build(t)
	if err != nil {
		panic(err)
	}
	return p
}

func build(t table) (*Policy, error) {
	if len(t.General) == 0 {
		return nil, fmt.Errorf("policy has no general documents")
	}
	general, err := descriptors(t.General, nil)
	if err != nil {
		return nil, fmt.Errorf("general: %w", err)
	}

	p := &Policy{general: general, specific: make(map[models.VisaType][]models.Descriptor, len(t.Specific))}
	for name, entries := range t.Specific {
		vt, err := models.ParseVisaType(name)
		if err != nil || !vt.IsKnown() {
			return nil, fmt.Errorf("specific: unknown visa type %q", name)
		}
		if _, dup := p.specific[vt]; dup {
			return nil, fmt.Errorf("specific: visa type %q listed twice", name)
		}
		specific, err := descriptors(entries, general)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", vt, err)
		}
		p.specific[vt] = specific
	}
	return p, nil
}

// descriptors numbers entries from 1 and rejects keys that repeat within the list
// or collide with reserved.
func descriptors(entries []entry, reserved []models.Descriptor) ([]models.Descriptor, error) {
	seen := make(map[string]struct{}, len(entries)+len(reserved))
	for _, d := range reserved {
		seen[d.FieldKey] = struct{}{}
	}

	out := make([]models.Descriptor, 0, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("entry %d has no key", i+1)
		}
		if _, dup := seen[e.Key]; dup {
			return nil, fmt.Errorf("duplicate document key %q", e.Key)
		}
		seen[e.Key] = struct{}{}

		label := e.Label
		if label == "" {
			label = e.Key
		}
		out = append(out, models.Descriptor{Ordinal: i + 1, Label: label, Required: e.Required, FieldKey: e.Key})
	}
	return out, nil
}
