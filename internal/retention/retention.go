// Package retention deletes chat history older than a configured age on a
// cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	jobName         = "prune-chat-history"
	defaultSchedule = "0 3 * * *"
	pruneTimeout    = time.Minute
)

// Pruner deletes rows older than cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	pruner    Pruner
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	now       func() time.Time

	cron gocron.Scheduler
}

// New validates the settings; the job is registered by Start.
func New(pruner Pruner, retention time.Duration, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if pruner == nil {
		return nil, errors.New("retention: pruner must not be nil")
	}
	if retention <= 0 {
		return nil, errors.New("retention: retention must be positive")
	}
	if schedule == "" {
		schedule = defaultSchedule
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		pruner:    pruner,
		retention: retention,
		schedule:  schedule,
		logger:    logger.With("component", "retention"),
		now:       time.Now,
	}, nil
}

// Start creates the UTC cron scheduler and registers the prune job.
func (s *Scheduler) Start() error {
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("retention: create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.CronJob(s.schedule, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
			defer cancel()
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("prune failed", "err", err)
			}
		}),
		gocron.WithName(jobName),
	)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("retention: schedule job %q: %w", s.schedule, err)
	}

	cron.Start()
	s.cron = cron
	s.logger.Info("prune job scheduled", "cron", s.schedule, "retention", s.retention)
	return nil
}

// RunOnce prunes everything older than now minus the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention: prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.logger.Info("pruned chat history", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Stop waits for a running job and shuts the scheduler down. It is a no-op
// if Start was never called.
func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("retention: shutdown scheduler: %w", err)
	}
	s.cron = nil
	return nil
}
