// Package session holds in-progress intake sessions and runs their lifecycle:
// creation or hydration from the Visa API, edits, submission and idle expiry.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"visaintake/internal/intake/aggregator"
)

// Kind says what a session submits to.
type Kind string

const (
	KindCreate      Kind = "create"
	KindEdit        Kind = "edit"
	KindSubTraveler Kind = "sub_traveler"
)

// Session is one intake flow. Its aggregator owns the travelers.
type Session struct {
	ID            string
	Kind          Kind
	VisaID        string
	SubTravelerID string
	CreatedAt     time.Time

	agg      *aggregator.Aggregator
	lastSeen atomic.Int64

	// mu serializes membership changes that also touch the Visa API.
	mu sync.Mutex
}

// Aggregator returns the session's traveler aggregator.
func (s *Session) Aggregator() *aggregator.Aggregator { return s.agg }

// LastSeen is the last time the session was used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// lockKey names the application a submission writes to. Create sessions have
// nothing stored yet, so they lock on themselves.
func (s *Session) lockKey() string {
	switch s.Kind {
	case KindEdit:
		return "visa:" + s.VisaID
	case KindSubTraveler:
		return "visa:" + s.VisaID + ":sub:" + s.SubTravelerID
	}
	return "session:" + s.ID
}
