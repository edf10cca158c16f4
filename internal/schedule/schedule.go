package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled pricing run.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron spec. A run that is still going when the
// next one is due makes the next one skip.
type Scheduler struct {
	cron *cron.Cron
	spec string
	log  zerolog.Logger
}

// New parses spec (standard five fields or descriptors like "@hourly").
func New(spec string, loc *time.Location, log zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	logger := cronLogger{log: log.With().Str("component", "scheduler").Logger()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, spec: spec, log: log}, nil
}

// Run registers job and blocks until ctx is done, then waits for a running
// job to finish. If runNow is set the job also runs once immediately.
func (s *Scheduler) Run(ctx context.Context, job Job, runNow bool) error {
	wrapped := func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled run failed")
			return
		}
		s.log.Info().Dur("took", time.Since(start)).Msg("scheduled run finished")
	}

	id, err := s.cron.AddFunc(s.spec, wrapped)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.spec).Time("next", s.cron.Entry(id).Next).Msg("scheduler started")

	if runNow {
		// Through the entry's wrapped job so the skip-if-running guard applies.
		go s.cron.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
