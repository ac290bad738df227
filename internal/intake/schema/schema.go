// Package schema holds the declarative field rules for a traveler's identity.
package schema

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"visaintake/internal/intake/models"
	dErrors "visaintake/pkg/domain-errors"
	pkgstrings "visaintake/pkg/platform/strings"
)

// input mirrors the identity fields with their rules. Values are trimmed first.
type input struct {
	GivenName string   `json:"givenName" validate:"required,max=100"`
	Surname   string   `json:"surname"   validate:"required,max=100"`
	Phones    []string `json:"phones"    validate:"min=1,dive,required,phone"`
	Email     string   `json:"email"     validate:"required,email"`
	Address   string   `json:"address"   validate:"required,max=500"`
	Notes     string   `json:"notes"     validate:"max=2000"`
	VisaType  string   `json:"visaType"  validate:"required,oneof=business student jobHolder other"`
}

// Schema validates identity fields with go-playground/validator.
type Schema struct {
	validate *validator.Validate
}

// New builds a Schema. Field names in errors use the JSON spelling.
func New() *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", validPhone)
	return &Schema{validate: v}
}

// Validate returns one FieldError per failing rule, in struct order. Nil means valid.
func (s *Schema) Validate(id models.Identity, vt models.VisaType) []dErrors.FieldError {
	in := input{
		GivenName: strings.TrimSpace(id.GivenName),
		Surname:   strings.TrimSpace(id.Surname),
		Phones:    pkgstrings.DedupeAndTrim(id.Phones),
		Email:     strings.TrimSpace(id.Email),
		Address:   strings.TrimSpace(id.Address),
		Notes:     strings.TrimSpace(id.Notes),
		VisaType:  string(vt),
	}

	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dErrors.FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]dErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dErrors.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "phone":
		return "Invalid phone number"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "At least one phone number is required"
		}
		return "Too short"
	case "max":
		return "Too long"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "Invalid value"
	}
}

// validPhone accepts 6 to 15 digits with an optional leading plus and the usual
// separators. The plus is only allowed as the first character.
func validPhone(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ' ', r == '-', r == '(', r == ')':
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	digits := strings.TrimPrefix(pkgstrings.PhoneKey(raw), "+")
	return len(digits) >= 6 && len(digits) <= 15
}
