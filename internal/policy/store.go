package policy

import (
	"sync/atomic"

	"github.com/MrSnakeDoc/sweep/internal/domain"
	"github.com/MrSnakeDoc/sweep/internal/logger"
)

// Store holds the policy in effect. Each run takes one snapshot through
// Current, so a reload never changes a run halfway.
type Store struct {
	current atomic.Pointer[domain.Policy]
}

// NewStore creates a store holding p.
func NewStore(p domain.Policy) *Store {
	s := &Store{}
	s.Set(p)
	return s
}

// Current returns the policy in effect.
func (s *Store) Current() domain.Policy {
	return *s.current.Load()
}

// Set replaces the policy in effect.
func (s *Store) Set(p domain.Policy) {
	s.current.Store(&p)
}

// Reloader re-reads a policy file into a Store.
type Reloader struct {
	path   string
	base   domain.Policy
	store  *Store
	logger logger.Logger
}

// NewReloader creates a reloader layering path over base.
func NewReloader(path string, base domain.Policy, store *Store, log logger.Logger) *Reloader {
	return &Reloader{
		path:   path,
		base:   base,
		store:  store,
		logger: log,
	}
}

// Path returns the watched policy file.
func (r *Reloader) Path() string { return r.path }

// Reload loads the file and swaps it in. On error the previous policy stays.
func (r *Reloader) Reload() error {
	p, err := LoadFile(r.path, r.base)
	if err != nil {
		return err
	}

	r.store.Set(p)
	r.logger.Info("policy reloaded",
		logger.String("file", r.path),
		logger.Strings("labels", p.Labels),
		logger.Strings("excluded_trackers", p.ExcludedTrackers),
		logger.Float64("max_ratio", p.MaxRatio),
		logger.Float64("dead_retention_hours", p.DeadRetentionHours),
		logger.Float64("max_age_hours", p.MaxAgeHours),
		logger.Bool("dry_run", p.DryRun))
	return nil
}
