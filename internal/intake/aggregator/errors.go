package aggregator

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "visaintake/pkg/domain-errors"
)

// ErrSubmissionInFlight rejects a submission started while another is running.
var ErrSubmissionInFlight = dErrors.New(dErrors.CodeConflict, "a submission is already in progress")

// TravelerProblems lists what keeps one traveler from being complete.
type TravelerProblems struct {
	TravelerID int                  `json:"traveler_id"`
	Problems   []dErrors.FieldError `json:"problems"`
}

// ValidationFailedError is returned by SubmitAll when any traveler is incomplete
// or no traveler is tracked. No network call has been made.
type ValidationFailedError struct {
	Travelers []TravelerProblems
}

func (e *ValidationFailedError) Error() string {
	return string(dErrors.CodeValidation) + ": " + e.message()
}

func (e *ValidationFailedError) message() string {
	if len(e.Travelers) == 0 {
		return "no travelers to submit"
	}
	ids := make([]string, 0, len(e.Travelers))
	for _, t := range e.Travelers {
		ids = append(ids, strconv.Itoa(t.TravelerID))
	}
	noun := "traveler"
	if len(ids) > 1 {
		noun = "travelers"
	}
	return fmt.Sprintf("%s %s incomplete", noun, strings.Join(ids, ", "))
}

// Unwrap exposes the coded form so transports map it like any domain error.
func (e *ValidationFailedError) Unwrap() error {
	return dErrors.New(dErrors.CodeValidation, e.message())
}

// Details returns the per-traveler problems.
func (e *ValidationFailedError) Details() any {
	return e.Travelers
}
