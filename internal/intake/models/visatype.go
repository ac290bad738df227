package models

import (
	"fmt"
	"strings"
)

// VisaType selects which type-specific document set applies to a traveler.
type VisaType string

const (
	VisaTypeUnset     VisaType = ""
	VisaTypeBusiness  VisaType = "business"
	VisaTypeStudent   VisaType = "student"
	VisaTypeJobHolder VisaType = "jobHolder"
	VisaTypeOther     VisaType = "other"
)

// VisaTypes lists every selectable visa type in display order.
var VisaTypes = []VisaType{VisaTypeBusiness, VisaTypeStudent, VisaTypeJobHolder, VisaTypeOther}

// ParseVisaType accepts the wire spelling of a visa type, case-insensitively.
// An empty string parses to VisaTypeUnset.
func ParseVisaType(s string) (VisaType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VisaTypeUnset, nil
	}
	for _, vt := range VisaTypes {
		if strings.EqualFold(s, string(vt)) {
			return vt, nil
		}
	}
	return VisaTypeUnset, fmt.Errorf("unknown visa type %q", s)
}

// IsKnown reports whether vt is one of the selectable types.
func (vt VisaType) IsKnown() bool {
	switch vt {
	case VisaTypeBusiness, VisaTypeStudent, VisaTypeJobHolder, VisaTypeOther:
		return true
	}
	return false
}

// DocumentsField is the backend's key for this type's document map,
// for example "businessDocuments". Empty for VisaTypeUnset.
func (vt VisaType) DocumentsField() string {
	if !vt.IsKnown() {
		return ""
	}
	return string(vt) + "Documents"
}

func (vt VisaType) String() string {
	if vt == VisaTypeUnset {
		return "unset"
	}
	return string(vt)
}
