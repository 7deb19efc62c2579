// backend/src/services/scheduler.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/username/rupeefolio/backend/src/logger"
)

// secondPassGap: the daily job fetches twice, the second pass a few seconds
// after the first to catch last-tick settlement in closing prices.
const secondPassGap = 3 * time.Second

// RefreshScheduler owns the single outstanding daily-refresh timer. It is an
// explicit instance created and stopped with the application lifecycle, not a
// package-level singleton; Stop must be called on teardown so no timer leaks.
type RefreshScheduler struct {
	clock     *MarketClock
	portfolio PortfolioService

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func NewRefreshScheduler(clock *MarketClock, portfolio PortfolioService) *RefreshScheduler {
	return &RefreshScheduler{clock: clock, portfolio: portfolio}
}

// Start schedules the one-shot timer for the next market close. Each firing
// runs two forced refresh passes and then reschedules for the following day.
func (s *RefreshScheduler) Start() {
	s.scheduleNext()
}

func (s *RefreshScheduler) scheduleNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	next := s.clock.NextDailyRefresh(time.Now())
	wait := time.Until(next)
	logger.L.Info("Daily refresh scheduled", "at", next.Format(time.RFC3339), "in", wait.String())

	s.timer = time.AfterFunc(wait, s.fire)
}

func (s *RefreshScheduler) fire() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	logger.L.Info("Daily refresh firing")
	report, err := s.portfolio.RefreshTwice(context.Background(), secondPassGap)
	if err != nil {
		logger.L.Error("Daily refresh failed", "error", err)
	} else {
		logger.L.Info("Daily refresh complete", "succeeded", report.Succeeded, "failed", report.Failed)
	}

	s.scheduleNext()
}

// Stop cancels the pending timer. It is safe to call more than once; an
// in-flight refresh pass is allowed to finish, its result simply discarded.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
