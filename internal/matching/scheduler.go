// internal/matching/scheduler.go

package matching

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the nightly recommendation refresh
type Scheduler struct {
	service Service
	logger  *zap.Logger
	hour    int
	minute  int
}

func NewScheduler(service Service, logger *zap.Logger, hour, minute int) *Scheduler {
	return &Scheduler{service: service, logger: logger, hour: hour, minute: minute}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.runDaily(ctx, s.hour, s.minute, s.refreshAll)
}

func (s *Scheduler) refreshAll(ctx context.Context) error {
	start := time.Now()
	refreshed, err := s.service.RefreshAllUsers(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("nightly recommendation refresh finished",
		zap.Int("users_refreshed", refreshed),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) runDaily(ctx context.Context, hour, minute int, task func(context.Context) error) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			if err := task(ctx); err != nil {
				s.logger.Error("scheduled task failed", zap.Error(err))
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
