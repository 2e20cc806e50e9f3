// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SessionSweeper drops client sessions that have been idle too long.
type SessionSweeper interface {
	SweepIdle(ctx context.Context) int
}

// Scheduler runs background jobs.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionSweeper
	schedule string
}

// NewScheduler creates a scheduler sweeping idle sessions on schedule, a
// cron spec such as "@every 5m" or "*/10 * * * *".
func NewScheduler(sessions SessionSweeper, schedule string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron loop. ctx is handed to every
// run; it should outlive the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("Session sweep scheduled")
	return nil
}

// Sweep runs one idle session sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	removed := s.sessions.SweepIdle(ctx)
	log.Debug().Int("removed", removed).Msg("[CRON] Session sweep finished")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}
