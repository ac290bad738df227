//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaintake/pkg/testutil/containers"
)

func TestRedis_Lock(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	t.Cleanup(func() {
		_ = rc.Client.Close()
		_ = rc.Container.Terminate(ctx)
	})
	locker := NewRedis(rc.Client)

	t.Run("second acquire fails while held", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		release, err := locker.Acquire(ctx, "s1", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "s1", time.Minute)
		assert.ErrorIs(t, err, ErrHeld)

		require.NoError(t, release(ctx))
		_, err = locker.Acquire(ctx, "s1", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("lock expires after ttl", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		_, err := locker.Acquire(ctx, "s2", 100*time.Millisecond)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, err := locker.Acquire(ctx, "s2", time.Minute)
			return err == nil
		}, 2*time.Second, 50*time.Millisecond)
	})

	t.Run("stale release keeps the new holder", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		stale, err := locker.Acquire(ctx, "s3", 100*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		_, err = locker.Acquire(ctx, "s3", time.Minute)
		require.NoError(t, err)
		require.NoError(t, stale(ctx))

		_, err = locker.Acquire(ctx, "s3", time.Minute)
		assert.ErrorIs(t, err, ErrHeld)
	})
}
