package cachecheck

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Scheduler runs the checker on a fixed interval and on demand. Triggers
// that arrive while a run is in progress share its result. Runs are bound
// to the scheduler's own context, never to a caller's.
type Scheduler struct {
	checker  *Checker
	interval time.Duration
	fix      bool
	logger   *zap.Logger
	sfg      singleflight.Group

	base context.Context
	stop context.CancelFunc
}

func NewScheduler(checker *Checker, interval time.Duration, fix bool, logger *zap.Logger) *Scheduler {
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		checker:  checker,
		interval: interval,
		fix:      fix,
		logger:   logger,
		base:     base,
		stop:     stop,
	}
}

// Run blocks until ctx is done, then cancels any run still in flight.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.stop()

	s.logger.Info("cache check scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("fix", s.fix))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cache check scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Trigger(ctx); err != nil && !IsCancelled(err) {
				s.logger.Error("cache check failed", zap.Error(err))
			}
		}
	}
}

// Trigger runs the checker now in the scheduler's mode.
func (s *Scheduler) Trigger(ctx context.Context) (*Report, error) {
	return s.TriggerMode(ctx, s.fix)
}

// TriggerMode runs the checker now. Concurrent calls for the same mode are
// coalesced into one run. A caller whose ctx ends stops waiting; the run
// itself carries on for the others.
func (s *Scheduler) TriggerMode(ctx context.Context, fix bool) (*Report, error) {
	key := "report"
	if fix {
		key = "fix"
	}
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		return s.checker.Run(s.base, fix)
	})

	select {
	case <-ctx.Done():
		s.logger.Debug("cache check trigger abandoned", zap.String("mode", key), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("cache check trigger coalesced", zap.String("mode", key))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	}
}
