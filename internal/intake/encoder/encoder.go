// Package encoder turns traveler snapshots into one submission payload:
// a structured record plus named file attachments.
package encoder

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"

	"visaintake/internal/intake/models"
)

// DataField is the multipart field that carries the structured record.
const DataField = "data"

// Attachment name prefixes.
const (
	PrimaryPrefix     = "primaryTraveler"
	SubTravelerPrefix = "subTraveler"
)

// Identity is the flattened identity of one traveler as the backend expects it.
type Identity struct {
	ID        string   `json:"_id,omitempty"`
	GivenName string   `json:"givenName"`
	Surname   string   `json:"surname"`
	Phone     string   `json:"phone"`
	Phones    []string `json:"phones"`
	Email     string   `json:"email"`
	Address   string   `json:"address"`
	Notes     string   `json:"notes,omitempty"`
	VisaType  string   `json:"visaType"`
}

// Record is the structured part: the primary traveler plus sub-traveler identities.
// Documents travel only as attachments.
type Record struct {
	Identity
	SubTravelers []Identity `json:"subTravelers"`
}

// Attachment is one file part.
type Attachment struct {
	Name        string
	FileName    string
	ContentType string
	Size        int64
	Digest      string
	Data        []byte
}

// Payload is a complete submission.
type Payload struct {
	Data        Record
	Attachments []Attachment
}

// Encode builds the payload. Sub-travelers appear in the order given and their
// attachments are named by that position: primaryTraveler_<key> and
// subTraveler<index>_<key>. Only satisfied slots holding a local file are attached;
// documents already stored remotely are left out.
func Encode(primary models.TravelerRecord, others []models.TravelerRecord) *Payload {
	p := &Payload{
		Data: Record{
			Identity:     identity(primary),
			SubTravelers: make([]Identity, 0, len(others)),
		},
	}
	p.attach(PrimaryPrefix, primary.Documents)

	for i, rec := range others {
		p.Data.SubTravelers = append(p.Data.SubTravelers, identity(rec))
		p.attach(fmt.Sprintf("%s%d", SubTravelerPrefix, i), rec.Documents)
	}
	return p
}

// EncodeSubTraveler builds the payload that replaces one stored sub-traveler: its
// identity alone, with attachments named subTraveler_<key>.
func EncodeSubTraveler(rec models.TravelerRecord) *Payload {
	p := &Payload{Data: Record{Identity: identity(rec), SubTravelers: []Identity{}}}
	p.attach(SubTravelerPrefix, rec.Documents)
	return p
}

// AttachmentName is the part name for a document of the traveler at prefix.
func AttachmentName(prefix, key string) string {
	return prefix + "_" + key
}

func (p *Payload) attach(prefix string, docs models.DocumentSet) {
	for _, slot := range docs.All().Satisfied() {
		local, ok := slot.File().(*models.LocalFile)
		if !ok {
			continue
		}
		sum := blake2b.Sum256(local.Data)
		p.Attachments = append(p.Attachments, Attachment{
			Name:        AttachmentName(prefix, slot.Key()),
			FileName:    local.Name(),
			ContentType: contentType(local),
			Size:        local.Size(),
			Digest:      hex.EncodeToString(sum[:]),
			Data:        local.Data,
		})
	}
}

func contentType(f *models.LocalFile) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return mimetype.Detect(f.Data).String()
}

func identity(rec models.TravelerRecord) Identity {
	phones := append([]string{}, rec.Identity.Phones...)
	var first string
	if len(phones) > 0 {
		first = phones[0]
	}
	return Identity{
		ID:        rec.RemoteID,
		GivenName: strings.TrimSpace(rec.Identity.GivenName),
		Surname:   strings.TrimSpace(rec.Identity.Surname),
		Phone:     first,
		Phones:    phones,
		Email:     strings.TrimSpace(rec.Identity.Email),
		Address:   strings.TrimSpace(rec.Identity.Address),
		Notes:     strings.TrimSpace(rec.Identity.Notes),
		VisaType:  string(rec.VisaType),
	}
}

// Attachment returns the attachment named name.
func (p *Payload) Attachment(name string) (Attachment, bool) {
	for _, a := range p.Attachments {
		if a.Name == name {
			return a, true
		}
	}
	return Attachment{}, false
}

// Digest is a BLAKE2b-256 over the structured record and every attachment digest,
// in order. Identical submissions hash identically.
func (p *Payload) Digest() (string, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write(data)
	for _, a := range p.Attachments {
		h.Write([]byte(a.Name))
		h.Write([]byte(a.Digest))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
