package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/domain"
	"github.com/MrSnakeDoc/sweep/internal/logger"
	"github.com/MrSnakeDoc/sweep/internal/sweeper"
)

// Pinger is anything whose reachability /status reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time      // for testing, defaults to time.Now
	AllowedCIDRS []string              // IPs allowed to access /run, /status and /metrics
	AllowedHosts []string              // Host headers allowed on /run
	TrustProxy   bool                  // true if running behind a trusted reverse proxy
	RunBurst     int                   // /run token bucket size per client
	RunPerMinute int                   // /run token refill per client
	RunTrigger   chan<- struct{}       // buffered(1) channel read by the scheduler
	RunStatus    func() sweeper.Status // last run bookkeeping
	NextRun      func() time.Time      // next scheduled tick, zero if unknown
	Policy       func() domain.Policy  // policy the next run will use
	PolicySource string                // "env" or the policy file path
	DaemonURL    string                // RPC endpoint, for /status
	RunLock      Pinger                // nil when the Redis run lock is disabled
	Metrics      http.Handler          // Prometheus exposition
}

// Now returns d.TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
