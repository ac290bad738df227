// Package httputil renders JSON responses and coded errors consistently.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "visaintake/pkg/domain-errors"
)

// ErrorBody is the JSON error envelope. Details carries structured problems
// (for example incomplete travelers) when the error exposes them.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Details          any    `json:"details,omitempty"`
}

// Detailer is implemented by errors that expose structured details to clients.
type Detailer interface {
	Details() any
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and error envelope. Internal errors never
// leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.ErrorDescription = dErrors.MessageOf(err)
		var d Detailer
		if errors.As(err, &d) {
			body.Details = d.Details()
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
