package events

import (
	"context"
	"log/slog"
	"time"

	"visaintake/internal/platform/metrics"
)

// Buffered queues events in memory and publishes them from Run, so a slow
// broker never delays the submitter. Delivery is best effort: when the buffer
// is full the oldest events are dropped.
type Buffered struct {
	next     Publisher
	buf      *RingBuffer
	wake     chan struct{}
	batch    int
	interval time.Duration
	drain    time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// BufferedOption configures a Buffered publisher.
type BufferedOption func(*Buffered)

// WithCapacity bounds the number of queued events.
func WithCapacity(n int) BufferedOption {
	return func(b *Buffered) { b.buf = NewRingBuffer(n) }
}

// WithBatchSize sets how many events one drain pass publishes.
func WithBatchSize(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.batch = n
		}
	}
}

// WithRetryInterval sets how often a failed backlog is retried.
func WithRetryInterval(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithDrainTimeout bounds the final flush Run makes after its context ends.
func WithDrainTimeout(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.drain = d
		}
	}
}

// WithBufferLogger sets the logger.
func WithBufferLogger(l *slog.Logger) BufferedOption {
	return func(b *Buffered) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBufferMetrics sets the metrics sink.
func WithBufferMetrics(m *metrics.Metrics) BufferedOption {
	return func(b *Buffered) { b.metrics = m }
}

// NewBuffered wraps next. Nothing is published until Run is started.
func NewBuffered(next Publisher, opts ...BufferedOption) *Buffered {
	b := &Buffered{
		next:     next,
		buf:      NewRingBuffer(1024),
		wake:     make(chan struct{}, 1),
		batch:    64,
		interval: 5 * time.Second,
		drain:    5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish queues e and returns immediately.
func (b *Buffered) Publish(ctx context.Context, e Submitted) error {
	if b.buf.Enqueue(e) {
		b.metrics.IncrementEvent("dropped")
		b.logger.WarnContext(ctx, "event buffer full, oldest event dropped", "dropped_total", b.buf.Dropped())
	}
	b.metrics.SetEventBacklog(b.buf.Len())
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of queued events.
func (b *Buffered) Len() int { return b.buf.Len() }

// Run drains the buffer whenever events arrive and retries failures on an
// interval. When ctx ends it makes one final attempt, bounded by the drain
// timeout, and returns. Events still queued after that are lost.
func (b *Buffered) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.drain)
			b.Flush(drainCtx)
			cancel()
			if n := b.buf.Len(); n > 0 {
				b.logger.WarnContext(ctx, "events left unpublished at shutdown", "pending", n)
			}
			return nil
		case <-b.wake:
			b.Flush(ctx)
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

// Flush publishes queued events in order until the buffer is empty or a
// publish fails. Failed events go back to the front of the buffer.
func (b *Buffered) Flush(ctx context.Context) {
	defer func() { b.metrics.SetEventBacklog(b.buf.Len()) }()
	for {
		batch := b.buf.DequeueBatch(b.batch)
		if len(batch) == 0 {
			return
		}
		for i, e := range batch {
			if err := b.next.Publish(ctx, e); err != nil {
				b.metrics.IncrementEvent("failed")
				b.logger.WarnContext(ctx, "publish submission event failed",
					"event_id", e.EventID,
					"visa_id", e.VisaID,
					"pending", len(batch)-i+b.buf.Len(),
					"error", err,
				)
				b.buf.Requeue(batch[i:])
				return
			}
			b.metrics.IncrementEvent("published")
		}
	}
}
