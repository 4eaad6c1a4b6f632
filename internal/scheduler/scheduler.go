package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/sweep/internal/logger"
	"github.com/MrSnakeDoc/sweep/internal/sweeper"
)

// Runner performs one sweep.
type Runner interface {
	Run(ctx context.Context) (*sweeper.Report, error)
}

// Scheduler drives a Runner from a cron expression and a manual trigger.
// Runs never overlap: a tick or trigger arriving mid-run is skipped.
type Scheduler struct {
	runner        Runner
	schedule      string
	logger        logger.Logger
	manualTrigger <-chan struct{}

	cron     *cron.Cron
	job      cron.Job
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler. manualTrigger may be nil.
func New(runner Runner, schedule string, manualTrigger <-chan struct{}, log logger.Logger) *Scheduler {
	return &Scheduler{
		runner:        runner,
		schedule:      schedule,
		logger:        log,
		manualTrigger: manualTrigger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs the first sweep synchronously and returns its error, so a
// broken setup fails at startup. Later failures are only logged.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	// Another process holding the run lock is not a broken setup.
	if _, err := s.runner.Run(ctx); err != nil {
		if !errors.Is(err, sweeper.ErrRunInProgress) {
			return fmt.Errorf("initial run failed: %w", err)
		}
		s.logger.Warn("initial run skipped, another run holds the lock", logger.Error(err))
	}

	cl := cronLogger{log: s.logger}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.runOnce(ctx, "schedule") }))

	c := cron.New(cron.WithLogger(cl))
	if _, err := c.AddJob(s.schedule, s.job); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("scheduler started",
		logger.String("schedule", s.schedule),
		logger.Time("next_run", s.Next()))

	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	for {
		select {
		case <-s.manualTrigger:
			s.logger.Info("manual run triggered")
			s.job.Run()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOnce never propagates a failure; the next tick tries again.
func (s *Scheduler) runOnce(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}

	_, err := s.runner.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sweeper.ErrRunInProgress):
		s.logger.Warn("run skipped, previous run still in progress",
			logger.String("source", source))
	default:
		s.logger.Error("run failed",
			logger.String("source", source),
			logger.Error(err))
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cron == nil {
			return
		}
		<-s.doneCh
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler stopped")
	})
}

// cronLogger routes cron's internal logging through ours.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
