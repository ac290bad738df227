// Package receipts records submissions the Visa API accepted.
package receipts

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"visaintake/pkg/platform/sentinel"
)

// Receipt is the local record of one accepted submission.
type Receipt struct {
	ID              uuid.UUID `json:"id"`
	SessionID       string    `json:"session_id"`
	Target          string    `json:"target"`
	VisaID          string    `json:"visa_id,omitempty"`
	SubTravelerID   string    `json:"sub_traveler_id,omitempty"`
	TravelerCount   int       `json:"traveler_count"`
	AttachmentCount int       `json:"attachment_count"`
	PayloadDigest   string    `json:"payload_digest"`
	RequestID       string    `json:"request_id,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	ClientPlatform  string    `json:"client_platform,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Store persists receipts.
type Store interface {
	Save(ctx context.Context, r Receipt) error
	Get(ctx context.Context, id uuid.UUID) (Receipt, error)
	ListByVisa(ctx context.Context, visaID string) ([]Receipt, error)
}

// MemoryStore keeps receipts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[uuid.UUID]Receipt
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[uuid.UUID]Receipt)}
}

func (s *MemoryStore) Save(_ context.Context, r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.receipts[r.ID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[id]
	if !ok {
		return Receipt{}, sentinel.ErrNotFound
	}
	return r, nil
}

// ListByVisa returns the receipts for visaID, newest first.
func (s *MemoryStore) ListByVisa(_ context.Context, visaID string) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Receipt
	for _, r := range s.receipts {
		if r.VisaID == visaID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Receipt) int { return b.SubmittedAt.Compare(a.SubmittedAt) })
	return out, nil
}
