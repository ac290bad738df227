package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowOr(t *testing.T) {
	pinned := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	fallback := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fallback }

	t.Run("pinned time wins", func(t *testing.T) {
		ctx := WithTime(context.Background(), pinned)
		assert.Equal(t, pinned, NowOr(ctx, clock))
		assert.Equal(t, pinned, Now(ctx))
	})

	t.Run("falls back without a pinned time", func(t *testing.T) {
		assert.Equal(t, fallback, NowOr(context.Background(), clock))
	})
}
