package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(visaID string) Submitted {
	return Submitted{EventID: uuid.New(), Type: TypeSubmitted, VisaID: visaID}
}

func visaIDs(events []Submitted) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.VisaID)
	}
	return ids
}

func TestRingBuffer(t *testing.T) {
	t.Run("full buffer drops the oldest", func(t *testing.T) {
		b := NewRingBuffer(2)
		assert.False(t, b.Enqueue(event("a")))
		assert.False(t, b.Enqueue(event("b")))
		assert.True(t, b.Enqueue(event("c")))

		assert.Equal(t, []string{"b", "c"}, visaIDs(b.DequeueBatch(10)))
		assert.Equal(t, int64(1), b.Dropped())
		assert.Equal(t, 0, b.Len())
	})

	t.Run("requeue restores order at the front", func(t *testing.T) {
		b := NewRingBuffer(4)
		for _, id := range []string{"a", "b", "c"} {
			b.Enqueue(event(id))
		}
		head := b.DequeueBatch(2)
		b.Enqueue(event("d"))
		b.Requeue(head)

		assert.Equal(t, []string{"a", "b", "c", "d"}, visaIDs(b.DequeueBatch(10)))
	})

	t.Run("requeue beyond capacity drops the excess", func(t *testing.T) {
		b := NewRingBuffer(2)
		b.Enqueue(event("x"))
		b.Requeue([]Submitted{event("a"), event("b")})

		assert.Equal(t, []string{"a", "x"}, visaIDs(b.DequeueBatch(10)))
		assert.Equal(t, int64(1), b.Dropped())
	})
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	got      []Submitted
}

func (p *flakyPublisher) Publish(_ context.Context, e Submitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, e)
	return nil
}

func (p *flakyPublisher) published() []Submitted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Submitted(nil), p.got...)
}

// stalledPublisher blocks every publish until its context ends, like a producer
// retrying against an unreachable broker.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ Submitted) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestBuffered(t *testing.T) {
	t.Run("publish does not wait for the broker", func(t *testing.T) {
		next := &Recorder{}
		b := NewBuffered(next)

		require.NoError(t, b.Publish(context.Background(), event("a")))
		assert.Empty(t, next.Events())
		assert.Equal(t, 1, b.Len())

		b.Flush(context.Background())
		assert.Equal(t, []string{"a"}, visaIDs(next.Events()))
		assert.Equal(t, 0, b.Len())
	})

	t.Run("failed events are retried in order", func(t *testing.T) {
		next := &flakyPublisher{failures: 1}
		b := NewBuffered(next)
		for _, id := range []string{"a", "b"} {
			require.NoError(t, b.Publish(context.Background(), event(id)))
		}

		b.Flush(context.Background())
		assert.Empty(t, next.published())
		assert.Equal(t, 2, b.Len())

		b.Flush(context.Background())
		assert.Equal(t, []string{"a", "b"}, visaIDs(next.published()))
	})

	t.Run("run delivers queued events and flushes on stop", func(t *testing.T) {
		next := &Recorder{}
		b := NewBuffered(next, WithRetryInterval(10*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()

		require.NoError(t, b.Publish(ctx, event("a")))
		assert.Eventually(t, func() bool { return len(next.Events()) == 1 }, time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		require.NoError(t, b.Publish(context.Background(), event("b")))
		assert.Equal(t, 1, b.Len())
	})

	t.Run("final flush is bounded when the broker is down", func(t *testing.T) {
		b := NewBuffered(stalledPublisher{}, WithDrainTimeout(20*time.Millisecond))
		require.NoError(t, b.Publish(context.Background(), event("a")))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run kept draining after its context ended")
		}
		assert.Equal(t, 1, b.Len(), "the undelivered event stays queued")
	})
}
