package visaapi

import (
	"errors"
	"fmt"
	"net/http"

	"visaintake/pkg/platform/sentinel"
)

// ErrorCategory normalizes Visa API failures.
type ErrorCategory string

const (
	ErrorTimeout     ErrorCategory = "timeout"
	ErrorOutage      ErrorCategory = "outage"
	ErrorRejected    ErrorCategory = "rejected"
	ErrorNotFound    ErrorCategory = "not_found"
	ErrorConflict    ErrorCategory = "conflict"
	ErrorBadData     ErrorCategory = "bad_data"
	ErrorCircuitOpen ErrorCategory = "circuit_open"
)

// APIError is a failed Visa API call. Message is the backend's own message when
// it sent one.
type APIError struct {
	Category   ErrorCategory
	Operation  string
	StatusCode int
	Message    string
	Underlying error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("visa api %s [%s]", e.Operation, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

// Unwrap maps the category onto the infrastructure sentinels services translate.
func (e *APIError) Unwrap() []error {
	var s error
	switch e.Category {
	case ErrorNotFound:
		s = sentinel.ErrNotFound
	case ErrorConflict:
		s = sentinel.ErrConflict
	case ErrorTimeout, ErrorOutage, ErrorCircuitOpen:
		s = sentinel.ErrUnavailable
	}
	var out []error
	if s != nil {
		out = append(out, s)
	}
	if e.Underlying != nil {
		out = append(out, e.Underlying)
	}
	return out
}

// Transient reports whether the failure says nothing about the request itself.
func (e *APIError) Transient() bool {
	switch e.Category {
	case ErrorTimeout, ErrorOutage, ErrorCircuitOpen:
		return true
	}
	return false
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusNotFound:
		return ErrorNotFound
	case status == http.StatusConflict:
		return ErrorConflict
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorOutage
	default:
		return ErrorRejected
	}
}

// IsTransient reports whether err is a Visa API failure worth trying again later.
func IsTransient(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	return false
}
