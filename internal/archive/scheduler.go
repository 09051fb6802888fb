// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler fires one Sweeper pass per cron tick. The job is wrapped in
// cron.DelayIfStillRunning, so a slow sweep simply delays the next tick
// rather than running concurrently with itself.
type Scheduler struct {
	cron   *cron.Cron
	sweep  *Sweeper
	logger *slog.Logger
}

// NewScheduler builds a Scheduler that runs sweep on the given cron
// expression. Sub-minute schedules (seconds field) are supported via
// cron.WithSeconds().
func NewScheduler(schedule string, sweep *Sweeper, logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With("component", "archive-scheduler")
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger), cron.WithChain(cron.DelayIfStillRunning(cronLogger)))

	s := &Scheduler{cron: c, sweep: sweep, logger: logger}
	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("adding archive sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing sweeps on schedule.
func (s *Scheduler) Start() {
	s.logger.Info("archive scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler and waits for any in-flight sweep to finish,
// bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("archive scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("archive scheduler stop timed out")
	}
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if err := s.sweep.Sweep(ctx); err != nil {
		s.logger.Error("archive sweep failed", "error", err)
	}
}
