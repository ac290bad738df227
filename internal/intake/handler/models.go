package handler

import (
	"strings"
	"time"

	"visaintake/internal/intake/aggregator"
	"visaintake/internal/intake/models"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/intake/session"
	dErrors "visaintake/pkg/domain-errors"
)

// UpdateTravelerRequest carries the fields to change. Absent fields are left as is.
type UpdateTravelerRequest struct {
	GivenName *string  `json:"givenName"`
	Surname   *string  `json:"surname"`
	Phones    []string `json:"phones"`
	Email     *string  `json:"email"`
	Address   *string  `json:"address"`
	Notes     *string  `json:"notes"`
	VisaType  *string  `json:"visaType"`
}

// Fields flattens the request into field-name updates.
func (r UpdateTravelerRequest) Fields() map[string]string {
	fields := make(map[string]string)
	set := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	set(models.FieldGivenName, r.GivenName)
	set(models.FieldSurname, r.Surname)
	set(models.FieldEmail, r.Email)
	set(models.FieldAddress, r.Address)
	set(models.FieldNotes, r.Notes)
	set(models.FieldVisaType, r.VisaType)
	if r.Phones != nil {
		fields[models.FieldPhones] = strings.Join(r.Phones, ",")
	}
	return fields
}

// DocumentResponse is one document slot.
type DocumentResponse struct {
	Group      string     `json:"group"`
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Required   bool       `json:"required"`
	Uploaded   bool       `json:"uploaded"`
	FileName   string     `json:"file_name,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
	Stored     bool       `json:"stored,omitempty"`
	URL        string     `json:"url,omitempty"`
}

// TravelerResponse is one traveler with its documents and outstanding problems.
type TravelerResponse struct {
	ID        int                  `json:"id"`
	RemoteID  string               `json:"remote_id,omitempty"`
	Primary   bool                 `json:"primary"`
	GivenName string               `json:"givenName"`
	Surname   string               `json:"surname"`
	Phones    []string             `json:"phones"`
	Email     string               `json:"email"`
	Address   string               `json:"address"`
	Notes     string               `json:"notes,omitempty"`
	VisaType  string               `json:"visaType"`
	Documents []DocumentResponse   `json:"documents"`
	Valid     bool                 `json:"valid"`
	Problems  []dErrors.FieldError `json:"problems,omitempty"`
}

// SessionResponse is the full state of a session.
type SessionResponse struct {
	ID            string             `json:"id"`
	Kind          session.Kind       `json:"kind"`
	VisaID        string             `json:"visa_id,omitempty"`
	SubTravelerID string             `json:"sub_traveler_id,omitempty"`
	IsAllValid    bool               `json:"is_all_valid"`
	IsSubmitting  bool               `json:"is_submitting"`
	Travelers     []TravelerResponse `json:"travelers"`
}

// SubmitResponse describes an accepted submission and the session afterwards.
type SubmitResponse struct {
	Submission aggregator.Submission `json:"submission"`
	Session    SessionResponse       `json:"session"`
}

// AddTravelerResponse returns the id of a new traveler.
type AddTravelerResponse struct {
	TravelerID int `json:"traveler_id"`
}

// PolicyResponse lists the documents a visa type asks for.
type PolicyResponse struct {
	VisaType string              `json:"visa_type"`
	General  []models.Descriptor `json:"general"`
	Specific []models.Descriptor `json:"specific"`
}

// ReceiptsResponse lists local submission receipts.
type ReceiptsResponse struct {
	Receipts []receipts.Receipt `json:"receipts"`
}

func toSessionResponse(sess *session.Session) SessionResponse {
	agg := sess.Aggregator()
	problems := make(map[int][]dErrors.FieldError)
	for _, p := range agg.Problems() {
		problems[p.TravelerID] = p.Problems
	}

	records := agg.Travelers()
	travelers := make([]TravelerResponse, 0, len(records))
	for _, rec := range records {
		travelers = append(travelers, toTravelerResponse(rec, problems[rec.ID]))
	}

	return SessionResponse{
		ID:            sess.ID,
		Kind:          sess.Kind,
		VisaID:        sess.VisaID,
		SubTravelerID: sess.SubTravelerID,
		IsAllValid:    agg.IsAllValid(),
		IsSubmitting:  agg.IsSubmitting(),
		Travelers:     travelers,
	}
}

func toTravelerResponse(rec models.TravelerRecord, problems []dErrors.FieldError) TravelerResponse {
	phones := rec.Identity.Phones
	if phones == nil {
		phones = []string{}
	}
	docs := documents("general", rec.Documents.General)
	if rec.Documents.Specific.Kind.IsKnown() {
		docs = append(docs, documents(string(rec.Documents.Specific.Kind), rec.Documents.Specific.Slots)...)
	}
	return TravelerResponse{
		ID:        rec.ID,
		RemoteID:  rec.RemoteID,
		Primary:   rec.IsPrimary(),
		GivenName: rec.Identity.GivenName,
		Surname:   rec.Identity.Surname,
		Phones:    phones,
		Email:     rec.Identity.Email,
		Address:   rec.Identity.Address,
		Notes:     rec.Identity.Notes,
		VisaType:  string(rec.VisaType),
		Documents: docs,
		Valid:     len(problems) == 0,
		Problems:  problems,
	}
}

func documents(group string, slots models.Documents) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(slots))
	for _, slot := range slots {
		d := slot.Descriptor()
		resp := DocumentResponse{
			Group:    group,
			Key:      d.FieldKey,
			Label:    d.Label,
			Required: d.Required,
			Uploaded: slot.Satisfied(),
		}
		if slot.Satisfied() {
			resp.FileName = slot.DisplayName()
			resp.SizeBytes = slot.SizeBytes()
			if at := slot.UploadedAt(); !at.IsZero() {
				resp.UploadedAt = &at
			}
			if remote, ok := slot.File().(*models.RemoteFile); ok {
				resp.Stored = true
				resp.URL = remote.URL
			}
		}
		out = append(out, resp)
	}
	return out
}
