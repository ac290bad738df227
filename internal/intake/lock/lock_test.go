package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "visaintake/pkg/domain-errors"
)

func TestMemory_Exclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	release, err := m.Acquire(ctx, "session-1", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "session-1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = m.Acquire(ctx, "session-2", time.Minute)
	assert.NoError(t, err, "keys are independent")

	require.NoError(t, release(ctx))
	_, err = m.Acquire(ctx, "session-1", time.Minute)
	assert.NoError(t, err)
}

func TestMemory_ExpiredLockIsReclaimed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	stale, err := m.Acquire(ctx, "session-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Acquire(ctx, "session-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	_, err = m.Acquire(ctx, "session-1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld, "stale release must not free the new holder's lock")
}
