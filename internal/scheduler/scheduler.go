// Package scheduler runs calibration on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/socassist/risk-engine/internal/calibration"
)

// Calibrator is the calibration entry point the schedule triggers.
type Calibrator interface {
	Run(ctx context.Context) (calibration.Summary, error)
}

// Scheduler triggers calibration runs. Overlapping triggers are dropped by
// the runner itself.
type Scheduler struct {
	cron    *cron.Cron
	runner  Calibrator
	logger  *slog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (six fields, seconds first, or a descriptor such as
// "@hourly") and registers the calibration job. timeout bounds a single
// run; zero means no bound.
func New(spec string, runner Calibrator, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule calibration %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("calibration scheduler started", slog.Time("next_run", s.Next()))
}

// Stop halts the schedule, cancels an in-flight run and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("calibration scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns when the job fires next; zero if the scheduler is not
// running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, calibration.ErrRunInProgress):
		s.logger.Info("scheduled calibration skipped: run in progress")
	case err != nil:
		s.logger.Error("scheduled calibration failed", slog.Any("error", err))
	default:
		s.logger.Info("scheduled calibration finished",
			slog.String("status", string(summary.Status)),
			slog.Int("adjustments", summary.Adjustments),
			slog.String("run_id", summary.RunID))
	}
}
