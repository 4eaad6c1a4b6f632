package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/logger"
	"github.com/MrSnakeDoc/sweep/internal/sweeper"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	errs  []error // returned in order, nil once exhausted
	ran   chan struct{}
}

func newFakeRunner(errs ...error) *fakeRunner {
	return &fakeRunner{errs: errs, ran: make(chan struct{}, 16)}
}

func (f *fakeRunner) Run(context.Context) (*sweeper.Report, error) {
	f.mu.Lock()
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	f.mu.Unlock()

	f.ran <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &sweeper.Report{}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitRun(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a run")
	}
}

func TestStartFailsOnFirstRunError(t *testing.T) {
	boom := errors.New("daemon unreachable")
	runner := newFakeRunner(boom)
	s := New(runner, "*/5 * * * *", nil, logger.NewNop())

	err := s.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if !s.Next().IsZero() {
		t.Error("schedule armed after failed first run")
	}
	s.Stop()
}

func TestStartToleratesLockHeldElsewhere(t *testing.T) {
	runner := newFakeRunner(fmt.Errorf("run lock held by another process: %w", sweeper.ErrRunInProgress))
	s := New(runner, "0 3 * * *", nil, logger.NewNop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	defer s.Stop()
	if s.Next().IsZero() {
		t.Error("schedule not armed")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	runner := newFakeRunner()
	s := New(runner, "not a cron", nil, logger.NewNop())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want error")
	}
	if runner.count() != 0 {
		t.Errorf("runs = %d, want 0", runner.count())
	}
}

func TestManualTriggerAndLaterFailures(t *testing.T) {
	// First run succeeds, the triggered one fails, the next succeeds again.
	runner := newFakeRunner(nil, errors.New("transient"), nil)
	trigger := make(chan struct{}, 1)
	s := New(runner, "0 3 * * *", trigger, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	waitRun(t, runner)

	if s.Next().IsZero() {
		t.Error("Next() is zero after Start")
	}

	trigger <- struct{}{}
	waitRun(t, runner)

	trigger <- struct{}{}
	waitRun(t, runner)

	if got := runner.count(); got != 3 {
		t.Errorf("runs = %d, want 3", got)
	}
}

func TestScheduledTick(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}

	runner := newFakeRunner()
	s := New(runner, "@every 1s", nil, logger.NewNop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitRun(t, runner) // initial
	waitRun(t, runner) // tick
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(newFakeRunner(), "0 3 * * *", nil, logger.NewNop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
	s.Stop()
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 1, "next", "soon", "dangling"})
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d, want 2", len(fields))
	}
	if fields[0].Key != "entry" || fields[1].Key != "next" {
		t.Errorf("keys = %q, %q", fields[0].Key, fields[1].Key)
	}
}
