package session

import (
	"context"
	"time"
)

// Sweep closes sessions idle for longer than the configured TTL and returns how
// many it closed. Sessions with a submission in flight are kept.
func (s *Service) Sweep(ctx context.Context) int {
	ttl := s.cfg.SessionIdleTTL
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) && !sess.agg.IsSubmitting() {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if s.Close(id) == nil {
			closed++
		}
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "idle sessions closed", "count", closed)
	}
	return closed
}

// RunSweeper sweeps every SweepInterval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 || s.cfg.SessionIdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
