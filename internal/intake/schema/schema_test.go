package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"visaintake/internal/intake/models"
	dErrors "visaintake/pkg/domain-errors"
)

func validIdentity() models.Identity {
	return models.Identity{
		GivenName: "Amina",
		Surname:   "Rahman",
		Phones:    []string{"+880 1711-000000"},
		Email:     "amina@example.com",
		Address:   "12 Lake Road, Dhaka",
	}
}

func fields(errs []dErrors.FieldError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Message
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	assert.Nil(t, New().Validate(validIdentity(), models.VisaTypeStudent))
}

func TestValidate_TrimsBeforeRequired(t *testing.T) {
	id := validIdentity()
	id.GivenName = "   "

	got := fields(New().Validate(id, models.VisaTypeStudent))
	assert.Equal(t, map[string]string{"givenName": "This field is required"}, got)
}

func TestValidate_Email(t *testing.T) {
	id := validIdentity()
	id.Email = "not-an-email"

	got := fields(New().Validate(id, models.VisaTypeBusiness))
	assert.Equal(t, "Invalid email format", got["email"])
}

func TestValidate_Phones(t *testing.T) {
	s := New()

	id := validIdentity()
	id.Phones = nil
	assert.Equal(t, "At least one phone number is required", fields(s.Validate(id, models.VisaTypeOther))["phones"])

	id.Phones = []string{"  "}
	assert.Contains(t, fields(s.Validate(id, models.VisaTypeOther)), "phones", "blank numbers are dropped")

	id.Phones = []string{"call me"}
	assert.Equal(t, "Invalid phone number", fields(s.Validate(id, models.VisaTypeOther))["phones[0]"])

	for phone, ok := range map[string]bool{
		"+8801711000000":  true,
		"(02) 9555-0100":  true,
		"12+34567":        false,
		"++8801711000000": false,
		"8801711000000+":  false,
		"12345":           false,
	} {
		id.Phones = []string{phone}
		_, failed := fields(s.Validate(id, models.VisaTypeOther))["phones[0]"]
		assert.Equal(t, !ok, failed, phone)
	}
}

func TestValidate_VisaType(t *testing.T) {
	s := New()

	got := fields(s.Validate(validIdentity(), models.VisaTypeUnset))
	assert.Equal(t, "This field is required", got["visaType"])

	got = fields(s.Validate(validIdentity(), models.VisaType("tourist")))
	assert.Equal(t, "Must be one of: business, student, jobHolder, other", got["visaType"])
}

func TestValidate_NotesOptional(t *testing.T) {
	id := validIdentity()
	id.Notes = ""
	assert.Nil(t, New().Validate(id, models.VisaTypeJobHolder))
}
