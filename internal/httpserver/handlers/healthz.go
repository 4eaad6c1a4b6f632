package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
	Runs          int     `json:"runs"`
	LastRunAt     string  `json:"last_run_at,omitempty"`
	LastSuccessAt string  `json:"last_success_at,omitempty"`
}

// Healthz is a liveness probe. It never fails on a bad run, it only reports
// how many sweeps this process has attempted and when.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		}
		if d.RunStatus != nil {
			st := d.RunStatus()
			resp.Runs = st.Runs
			resp.LastRunAt = rfc3339(st.LastRunAt)
			resp.LastSuccessAt = rfc3339(st.LastSuccessAt)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
