package api

import (
	"context"
	"time"
)

// RunSchedule refreshes every interval until ctx is done. A tick that finds
// a refresh already in flight is skipped.
func (s *Server) RunSchedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log := s.log.WithField("interval", interval.String())
	log.Info("scheduled refresh enabled")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduledRefresh(ctx, interval)
		}
	}
}

func (s *Server) scheduledRefresh(ctx context.Context, timeout time.Duration) {
	if !s.refreshMu.TryLock() {
		s.log.Warn("previous refresh still running, skipping scheduled tick")
		return
	}
	defer s.refreshMu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := s.Refresher.Refresh(runCtx, "schedule"); err != nil {
		s.log.WithError(err).Error("scheduled refresh failed")
	}
}
