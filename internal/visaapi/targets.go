package visaapi

import (
	"context"
	"errors"

	"visaintake/internal/intake/encoder"
	dErrors "visaintake/pkg/domain-errors"
)

// Target kinds.
const (
	KindCreate      = "create"
	KindUpdate      = "update"
	KindSubTraveler = "sub_traveler"
)

// Creator stores new applications.
type Creator interface {
	CreateVisa(ctx context.Context, payload *encoder.Payload) (Visa, error)
}

// Updater replaces stored applications.
type Updater interface {
	UpdateVisa(ctx context.Context, id string, payload *encoder.Payload) error
}

// SubTravelerUpdater replaces stored sub-travelers.
type SubTravelerUpdater interface {
	UpdateSubTraveler(ctx context.Context, id, subID string, payload *encoder.Payload) error
}

// CreateTarget submits a new application.
type CreateTarget struct {
	client Creator
}

// NewCreateTarget returns a target that calls CreateVisa.
func NewCreateTarget(c Creator) *CreateTarget { return &CreateTarget{client: c} }

func (t *CreateTarget) Kind() string { return KindCreate }

func (t *CreateTarget) Submit(ctx context.Context, payload *encoder.Payload) (string, error) {
	v, err := t.client.CreateVisa(ctx, payload)
	if err != nil {
		return "", translate(err)
	}
	return v.ID, nil
}

// UpdateTarget replaces a stored application.
type UpdateTarget struct {
	client Updater
	visaID string
}

// NewUpdateTarget returns a target that calls UpdateVisa for visaID.
func NewUpdateTarget(c Updater, visaID string) *UpdateTarget {
	return &UpdateTarget{client: c, visaID: visaID}
}

func (t *UpdateTarget) Kind() string { return KindUpdate }

func (t *UpdateTarget) Submit(ctx context.Context, payload *encoder.Payload) (string, error) {
	if err := t.client.UpdateVisa(ctx, t.visaID, payload); err != nil {
		return "", translate(err)
	}
	return t.visaID, nil
}

// SubTravelerTarget replaces one stored sub-traveler.
type SubTravelerTarget struct {
	client SubTravelerUpdater
	visaID string
	subID  string
}

// NewSubTravelerTarget returns a target that calls UpdateSubTraveler.
func NewSubTravelerTarget(c SubTravelerUpdater, visaID, subID string) *SubTravelerTarget {
	return &SubTravelerTarget{client: c, visaID: visaID, subID: subID}
}

func (t *SubTravelerTarget) Kind() string { return KindSubTraveler }

func (t *SubTravelerTarget) Submit(ctx context.Context, payload *encoder.Payload) (string, error) {
	if err := t.client.UpdateSubTraveler(ctx, t.visaID, t.subID, payload); err != nil {
		return "", translate(err)
	}
	return t.visaID, nil
}

// translate marks failures that say the backend is unreachable so callers can
// tell "try later" apart from a rejected application.
func translate(err error) error {
	var ae *APIError
	if errors.As(err, &ae) && ae.Transient() {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "the visa service is temporarily unavailable, please try again")
	}
	return err
}
