package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/sweep/internal/domain"
	"github.com/MrSnakeDoc/sweep/internal/logger"
	"github.com/MrSnakeDoc/sweep/internal/metrics"
)

// ErrRunInProgress is returned when a run is attempted while another one,
// in this process or (with a Locker) in another, has not finished.
var ErrRunInProgress = errors.New("sweep already in progress")

// TorrentClient is the daemon side of a run.
type TorrentClient interface {
	FetchTorrents(ctx context.Context) ([]domain.RawTorrent, error)
	RemoveTorrents(ctx context.Context, ids []int64, deleteLocalData bool) error
}

// PolicySource yields the policy for the next run.
type PolicySource interface {
	Current() domain.Policy
}

// Locker guards runs across processes.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// Recorder receives run outcomes.
type Recorder interface {
	ObserveRun(s metrics.RunStats)
	ObserveRunSkipped()
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(metrics.RunStats) {}
func (nopRecorder) ObserveRunSkipped()          {}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithLocker adds a cross-process run lock.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) { s.locker = l }
}

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// Sweeper runs fetch, filter, classify and remove as one sequential pass.
type Sweeper struct {
	client   TorrentClient
	policies PolicySource
	locker   Locker
	recorder Recorder
	logger   logger.Logger
	now      func() time.Time

	running sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// New creates a sweeper.
func New(client TorrentClient, policies PolicySource, log logger.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		client:   client,
		policies: policies,
		recorder: nopRecorder{},
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep. It never runs concurrently with itself.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		s.recorder.ObserveRunSkipped()
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			s.finish(nil, err, 0)
			return nil, err
		}
		if !ok {
			s.recorder.ObserveRunSkipped()
			return nil, fmt.Errorf("run lock held by another process: %w", ErrRunInProgress)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				s.logger.Warn("failed to release run lock", logger.Error(err))
			}
		}()
	}

	start := s.now()
	report, err := s.run(ctx)
	s.finish(report, err, s.now().Sub(start))
	return report, err
}

func (s *Sweeper) run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		ByReason:  make(map[domain.Reason]int, len(domain.Reasons)),
	}
	log := s.logger.With(logger.String("run_id", report.RunID))

	// One policy snapshot for the whole run.
	policy := s.policies.Current()
	report.DryRun = policy.DryRun

	if len(policy.Labels) == 0 {
		log.Warn("label allow-list is empty, no torrent is eligible")
	}

	raws, err := s.client.FetchTorrents(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch torrents: %w", err)
	}

	torrents := domain.HydrateAll(raws, s.now())
	report.Fetched = len(torrents)

	eligible := domain.NewFilterFromPolicy(policy).Apply(torrents)
	report.Eligible = len(eligible)

	for _, t := range eligible {
		if t.ErrorCode != 0 {
			log.Debug("torrent reports a daemon error",
				logger.Int64("id", t.ID),
				logger.String("name", t.Name),
				logger.Int("error_code", t.ErrorCode),
				logger.String("error", t.ErrorMessage))
		}

		d := domain.Evaluate(t, policy)
		if !d.Remove() {
			continue
		}

		report.Candidates = append(report.Candidates, Candidate{
			ID:       t.ID,
			Name:     t.Name,
			Label:    t.Label,
			Decision: d,
		})
		report.ByReason[d.Reason]++

		log.Info("removal candidate",
			logger.Int64("id", t.ID),
			logger.String("name", t.Name),
			logger.String("label", t.Label),
			logger.String("reason", string(d.Reason)),
			logger.String("detail", d.Detail))
	}

	if len(report.Candidates) == 0 {
		log.Info("sweep complete, nothing to remove",
			logger.Int("fetched", report.Fetched),
			logger.Int("eligible", report.Eligible))
		return report, nil
	}

	ids := report.CandidateIDs()

	if policy.DryRun {
		log.Info("dry run, skipping removal",
			logger.Int("fetched", report.Fetched),
			logger.Int("eligible", report.Eligible),
			logger.Int("candidates", len(ids)),
			logger.Int64s("ids", ids))
		return report, nil
	}

	if err := s.client.RemoveTorrents(ctx, ids, true); err != nil {
		return report, err
	}
	report.Removed = true

	log.Info("sweep complete, torrents removed",
		logger.Int("fetched", report.Fetched),
		logger.Int("eligible", report.Eligible),
		logger.Int("removed", len(ids)),
		logger.Int("ratio", report.ByReason[domain.ReasonRatio]),
		logger.Int("dead", report.ByReason[domain.ReasonDead]),
		logger.Int("ttl", report.ByReason[domain.ReasonTTL]),
		logger.Int64s("ids", ids))

	return report, nil
}

// finish records the outcome for metrics and readiness.
func (s *Sweeper) finish(report *Report, err error, elapsed time.Duration) {
	finished := s.now()

	stats := metrics.RunStats{Duration: elapsed, Err: err, FinishedAt: finished}
	if report != nil {
		report.Duration = elapsed
		stats.Fetched = report.Fetched
		stats.Eligible = report.Eligible
		stats.Candidates = len(report.Candidates)
		if report.Removed {
			stats.Removed = make(map[string]int, len(report.ByReason))
			for reason, n := range report.ByReason {
				stats.Removed[string(reason)] = n
			}
		}
	}
	s.recorder.ObserveRun(stats)

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastRunAt = finished
	s.status.Runs++
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	s.status.LastSuccessAt = finished
}

// Status returns a copy of the run bookkeeping.
func (s *Sweeper) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
