package visaapi

import (
	"encoding/json"
	"path"
	"strings"
	"time"

	"visaintake/internal/intake/models"
	"visaintake/internal/intake/traveler"
)

// envelope is the wrapper every Visa API response uses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Document is a stored upload.
type Document struct {
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Traveler is one traveler as the backend stores it.
type Traveler struct {
	ID                 string              `json:"_id"`
	GivenName          string              `json:"givenName"`
	Surname            string              `json:"surname"`
	Phone              string              `json:"phone"`
	Phones             []string            `json:"phones,omitempty"`
	Email              string              `json:"email"`
	Address            string              `json:"address"`
	Notes              string              `json:"notes,omitempty"`
	VisaType           string              `json:"visaType"`
	GeneralDocuments   map[string]Document `json:"generalDocuments,omitempty"`
	BusinessDocuments  map[string]Document `json:"businessDocuments,omitempty"`
	StudentDocuments   map[string]Document `json:"studentDocuments,omitempty"`
	JobHolderDocuments map[string]Document `json:"jobHolderDocuments,omitempty"`
	OtherDocuments     map[string]Document `json:"otherDocuments,omitempty"`
}

// Visa is a stored application: the primary traveler plus sub-travelers.
type Visa struct {
	Traveler
	SubTravelers []Traveler `json:"subTravelers"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SubTraveler returns the sub-traveler stored under id.
func (v Visa) SubTraveler(id string) (Traveler, bool) {
	for _, t := range v.SubTravelers {
		if t.ID == id {
			return t, true
		}
	}
	return Traveler{}, false
}

func (t Traveler) specificDocuments(vt models.VisaType) map[string]Document {
	switch vt {
	case models.VisaTypeBusiness:
		return t.BusinessDocuments
	case models.VisaTypeStudent:
		return t.StudentDocuments
	case models.VisaTypeJobHolder:
		return t.JobHolderDocuments
	case models.VisaTypeOther:
		return t.OtherDocuments
	}
	return nil
}

// Record converts the stored traveler into seed data for a sub-form. Stored
// documents become remote files; an unrecognized visa type is left unset.
func (t Traveler) Record() traveler.Record {
	vt, err := models.ParseVisaType(t.VisaType)
	if err != nil {
		vt = models.VisaTypeUnset
	}

	phones := t.Phones
	if len(phones) == 0 && t.Phone != "" {
		phones = strings.Split(t.Phone, ",")
	}

	files := make(map[string]models.File)
	for _, docs := range []map[string]Document{t.GeneralDocuments, t.specificDocuments(vt)} {
		for key, d := range docs {
			if d.URL == "" {
				continue
			}
			files[key] = &models.RemoteFile{FileName: path.Base(d.URL), URL: d.URL, SizeBytes: d.Size}
		}
	}

	return traveler.Record{
		RemoteID: t.ID,
		Identity: models.Identity{
			GivenName: t.GivenName,
			Surname:   t.Surname,
			Phones:    phones,
			Email:     t.Email,
			Address:   t.Address,
			Notes:     t.Notes,
		},
		VisaType: vt,
		Files:    files,
	}
}
