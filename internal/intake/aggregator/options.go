package aggregator

import (
	"log/slog"
	"time"

	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/traveler"
	"visaintake/internal/platform/metrics"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDebounce sets the recomputation quiet period. Zero recomputes on every edit.
func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) {
		if d >= 0 {
			a.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithResetOnSuccess starts a fresh session with one empty primary traveler after
// the backend accepts a submission.
func WithResetOnSuccess(reset bool) Option {
	return func(a *Aggregator) { a.resetOnSuccess = reset }
}

// WithMaxFileSize sets the per-document ceiling for forms this aggregator creates.
func WithMaxFileSize(n int64) Option {
	return func(a *Aggregator) { a.maxFileSize = n }
}

// WithPolicy sets the document table for forms this aggregator creates.
func WithPolicy(p *policy.Policy) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.policy = p
		}
	}
}

// WithValidityListener registers a callback for validity changes.
func WithValidityListener(l ValidityListener) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.listeners = append(a.listeners, l)
		}
	}
}

// WithSubmitHook registers a callback for accepted submissions.
func WithSubmitHook(h SubmitHook) Option {
	return func(a *Aggregator) {
		if h != nil {
			a.hooks = append(a.hooks, h)
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithEncoder replaces how tracked travelers become a payload. The first record
// is always the primary traveler.
func WithEncoder(fn EncodeFunc) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.encode = fn
		}
	}
}

// WithTravelers seeds the aggregator with pre-built forms, for example an
// application loaded for editing. One of them must be the primary traveler.
func WithTravelers(forms ...*traveler.SubForm) Option {
	return func(a *Aggregator) {
		a.initial = append(a.initial, forms...)
	}
}
