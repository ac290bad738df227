// Package lock serializes submissions of one intake session across server replicas.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "visaintake/pkg/domain-errors"
)

// ErrHeld is returned when another holder owns the key.
var ErrHeld = dErrors.New(dErrors.CodeConflict, "a submission is already in progress")

// Release gives up a lock. Releasing a lock that expired and was taken by someone
// else leaves the new holder's lock in place.
type Release func(ctx context.Context) error

// Locker hands out exclusive, expiring locks keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Memory is an in-process Locker for single-replica deployments and tests.
type Memory struct {
	mu   sync.Mutex
	held map[string]entry
	now  func() time.Time
}

type entry struct {
	token   string
	expires time.Time
}

// NewMemory returns an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]entry), now: time.Now}
}

// Acquire takes key for ttl, failing with ErrHeld while an unexpired holder exists.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	m.held[key] = entry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.held[key]; ok && cur.token == token {
			delete(m.held, key)
		}
		return nil
	}, nil
}
