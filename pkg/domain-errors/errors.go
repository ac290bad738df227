// Package domainerrors carries coded errors from services to transports.
//
// Services return errors created here so handlers can map them onto status codes
// without string matching. Infrastructure facts (record missing, backend down) stay
// in pkg/platform/sentinel and are translated by the service that observes them.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeInvalidInput     Code = "invalid_input"
	CodeValidation       Code = "validation_failed"
	CodeFileTooLarge     Code = "file_too_large"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeSubmissionFailed Code = "submission_failed"
	CodeUnavailable      Code = "unavailable"
	CodeInternal         Code = "internal_error"
)

// Error is a coded error with a user-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any coded error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost user-safe message, or "".
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeSubmissionFailed:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes a validation problem with a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
