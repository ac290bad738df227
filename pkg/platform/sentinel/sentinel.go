package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and the Visa API client
// return these (optionally wrapped) and services translate them into coded
// domain errors:
// - ErrNotFound: record or session does not exist
// - ErrConflict: a lock or unique key is already held
// - ErrInvalidState: entity cannot accept the requested operation
// - ErrUnavailable: backend or broker temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
