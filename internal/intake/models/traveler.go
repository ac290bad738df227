package models

// PrimaryTravelerID is the id of the traveler that can never be removed.
const PrimaryTravelerID = 1

// Identity field names accepted by SetField.
const (
	FieldGivenName = "givenName"
	FieldSurname   = "surname"
	FieldPhones    = "phones"
	FieldEmail     = "email"
	FieldAddress   = "address"
	FieldNotes     = "notes"
	FieldVisaType  = "visaType"
)

// Identity is a traveler's personal details.
type Identity struct {
	GivenName string
	Surname   string
	Phones    []string
	Email     string
	Address   string
	Notes     string
}

// TravelerRecord is a snapshot of one traveler.
type TravelerRecord struct {
	ID        int
	RemoteID  string
	Identity  Identity
	VisaType  VisaType
	Documents DocumentSet
}

// IsPrimary reports whether the record is the primary traveler.
func (r TravelerRecord) IsPrimary() bool { return r.ID == PrimaryTravelerID }
