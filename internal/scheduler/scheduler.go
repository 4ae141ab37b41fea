// Package scheduler runs background maintenance jobs on cron expressions.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron for the app's maintenance jobs (currently the
// nightly backup-retention purge).
type Scheduler struct {
	c *cron.Cron
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{c: cron.New()}
}

// AddJob registers a job that fires on the given cron expression.
func (s *Scheduler) AddJob(expr string, fn func()) error {
	if _, err := s.c.AddFunc(expr, fn); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	slog.Info("scheduler: job added", "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop gracefully.
func (s *Scheduler) Stop() {
	s.c.Stop()
}
