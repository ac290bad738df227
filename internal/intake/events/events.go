// Package events announces accepted submissions to downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeSubmitted names the event emitted after the Visa API accepts a submission.
const TypeSubmitted = "visa.application.submitted"

// Submitted is the body of a TypeSubmitted event. It carries no personal data.
type Submitted struct {
	EventID       uuid.UUID `json:"event_id"`
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Target        string    `json:"target"`
	VisaID        string    `json:"visa_id"`
	SubTravelerID string    `json:"sub_traveler_id,omitempty"`
	Travelers     int       `json:"travelers"`
	Attachments   int       `json:"attachments"`
	Digest        string    `json:"digest"`
	RequestID     string    `json:"request_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Key partitions events so every event for one application lands in order.
func (e Submitted) Key() string {
	if e.VisaID != "" {
		return e.VisaID
	}
	return e.SessionID
}

// Publisher emits submission events.
type Publisher interface {
	Publish(ctx context.Context, e Submitted) error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Submitted) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Submitted
}

func (r *Recorder) Publish(_ context.Context, e Submitted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Submitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Submitted(nil), r.events...)
}
