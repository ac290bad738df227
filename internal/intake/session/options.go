package session

import (
	"log/slog"
	"time"

	"visaintake/internal/intake/events"
	"visaintake/internal/intake/lock"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/metrics"
)

// Option configures a Service.
type Option func(*Service)

// WithIntakeConfig applies the intake section of the configuration.
func WithIntakeConfig(cfg config.IntakeConfig) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithLocker sets the submission lock. Defaults to an in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithReceipts sets the receipt store. Defaults to memory.
func WithReceipts(r receipts.Store) Option {
	return func(s *Service) {
		if r != nil {
			s.receipts = r
		}
	}
}

// WithEvents sets the event publisher. Defaults to dropping events.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithPolicy sets the document table.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
