package sweeper

import (
	"time"

	"github.com/MrSnakeDoc/sweep/internal/domain"
)

// Candidate is an eligible torrent a rule matched.
type Candidate struct {
	ID       int64
	Name     string
	Label    string
	Decision domain.Decision
}

// Report summarizes one run. It lives only as long as the caller keeps it.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Fetched    int
	Eligible   int
	Candidates []Candidate
	ByReason   map[domain.Reason]int
	DryRun     bool
	Removed    bool // the removal call was issued and succeeded
}

// CandidateIDs returns the candidate ids in evaluation order.
func (r *Report) CandidateIDs() []int64 {
	ids := make([]int64, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// Status is the in-memory bookkeeping behind /readyz. It is process-local
// and never persisted.
type Status struct {
	Runs          int
	LastRunAt     time.Time
	LastSuccessAt time.Time
	LastError     string
}

// Ready reports whether at least one run has succeeded.
func (s Status) Ready() bool {
	return !s.LastSuccessAt.IsZero()
}
