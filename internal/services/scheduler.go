package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vote-backend/internal/config"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs the daily closure sweep and the periodic search rebuild.
// Overlapping runs of the same job are skipped, never queued.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// NewScheduler registers the closure sweep on cfg.ClosureCron and, when
// cfg.ReindexCron is set, reindex on it. Schedules are evaluated in
// cfg.Location.
func NewScheduler(cfg config.SchedulerConfig, closure *ClosureService, reindex Job) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	lg := log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{l: lg}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, logger: lg}

	if _, err := c.AddFunc(cfg.ClosureCron, s.wrap("closure_sweep", func(ctx context.Context) error {
		_, err := closure.RunClosureCheck(ctx)
		return err
	})); err != nil {
		return nil, err
	}
	if cfg.ReindexCron != "" && reindex != nil {
		if _, err := c.AddFunc(cfg.ReindexCron, s.wrap("search_reindex", reindex)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		start := time.Now()
		if err := job(context.Background()); err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			return
		}
		s.logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job finished")
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
