package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sweep"

// Run outcomes recorded on runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics exposes sweep runs and daemon RPC traffic.
//
//   - sweep_runs_total{outcome}
//   - sweep_run_duration_seconds
//   - sweep_torrents_fetched / sweep_torrents_eligible / sweep_removal_candidates
//   - sweep_torrents_removed_total{reason}
//   - sweep_rpc_requests_total{method,outcome}
//   - sweep_rpc_session_renegotiations_total
//   - sweep_last_success_timestamp_seconds
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	fetched       prometheus.Gauge
	eligible      prometheus.Gauge
	candidates    prometheus.Gauge
	removed       *prometheus.CounterVec
	rpcRequests   *prometheus.CounterVec
	renegotiation prometheus.Counter
	lastSuccess   prometheus.Gauge
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sweep runs by outcome.",
		}, []string{"outcome"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a sweep run, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		fetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "torrents_fetched",
			Help:      "Torrents returned by the daemon on the last run.",
		}),

		eligible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "torrents_eligible",
			Help:      "Torrents passing the label and tracker filters on the last run.",
		}),

		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "removal_candidates",
			Help:      "Torrents matching a removal rule on the last run.",
		}),

		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "torrents_removed_total",
			Help:      "Torrents removed, by rule.",
		}, []string{"reason"}),

		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Daemon RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),

		renegotiation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_session_renegotiations_total",
			Help:      "Times the daemon answered 409 and the call was retransmitted.",
		}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs,
		m.runDuration,
		m.fetched,
		m.eligible,
		m.candidates,
		m.removed,
		m.rpcRequests,
		m.renegotiation,
		m.lastSuccess,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// ObserveRPC counts one daemon call.
func (m *Metrics) ObserveRPC(method, outcome string) {
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// ObserveSessionRenegotiation counts one 409 retransmission.
func (m *Metrics) ObserveSessionRenegotiation() {
	m.renegotiation.Inc()
}

// ObserveRunSkipped counts a trigger dropped because a run was in progress.
func (m *Metrics) ObserveRunSkipped() {
	m.runs.WithLabelValues(OutcomeSkipped).Inc()
}

// RunStats is what a finished run reports.
type RunStats struct {
	Fetched    int
	Eligible   int
	Candidates int
	Removed    map[string]int // by reason, empty on dry-run
	Duration   time.Duration
	Err        error
	FinishedAt time.Time
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(s RunStats) {
	m.runDuration.Observe(s.Duration.Seconds())

	if s.Err != nil {
		m.runs.WithLabelValues(OutcomeFailure).Inc()
		return
	}

	m.runs.WithLabelValues(OutcomeSuccess).Inc()
	m.fetched.Set(float64(s.Fetched))
	m.eligible.Set(float64(s.Eligible))
	m.candidates.Set(float64(s.Candidates))
	for reason, n := range s.Removed {
		m.removed.WithLabelValues(reason).Add(float64(n))
	}
	m.lastSuccess.Set(float64(s.FinishedAt.Unix()))
}
