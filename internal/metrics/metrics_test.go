package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun(RunStats{
		Fetched:    10,
		Eligible:   4,
		Candidates: 3,
		Removed:    map[string]int{"ratio": 2, "ttl": 1},
		Duration:   time.Second,
		FinishedAt: time.Unix(1700000000, 0),
	})
	m.ObserveRun(RunStats{Err: errors.New("daemon down"), Duration: time.Second})
	m.ObserveRunSkipped()

	if got := testutil.ToFloat64(m.runs.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Errorf("success runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(OutcomeSkipped)); got != 1 {
		t.Errorf("skipped runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.removed.WithLabelValues("ratio")); got != 2 {
		t.Errorf("removed{ratio} = %v, want 2", got)
	}
	// A failed run must not overwrite the last good gauges.
	if got := testutil.ToFloat64(m.eligible); got != 4 {
		t.Errorf("eligible = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess); got != 1700000000 {
		t.Errorf("last success = %v", got)
	}
}

func TestObserveRPC(t *testing.T) {
	m := New()
	m.ObserveRPC("torrent-get", "success")
	m.ObserveRPC("torrent-get", "success")
	m.ObserveSessionRenegotiation()

	if got := testutil.ToFloat64(m.rpcRequests.WithLabelValues("torrent-get", "success")); got != 2 {
		t.Errorf("rpc requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.renegotiation); got != 1 {
		t.Errorf("renegotiations = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRPC("torrent-remove", "http_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sweep_rpc_requests_total") {
		t.Error("exposition is missing sweep_rpc_requests_total")
	}
}
