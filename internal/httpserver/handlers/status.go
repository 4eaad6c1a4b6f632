package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
)

type componentStatus struct {
	OK       bool     `json:"ok"`
	Mode     string   `json:"mode,omitempty"`
	Endpoint string   `json:"endpoint,omitempty"`
	LastRun  string   `json:"last_run,omitempty"`
	NextRun  string   `json:"next_run,omitempty"`
	Source   string   `json:"source,omitempty"`
	DryRun   *bool    `json:"dry_run,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Runs     *int     `json:"runs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type statusResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Status reports each moving part of the sweeper.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"daemon":    daemonStatus(d),
			"scheduler": schedulerStatus(d),
			"policy":    policyStatus(d),
			"run_lock":  checkRunLock(r.Context(), d),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(statusResponse{
			Mode:       determineMode(d, components),
			Components: components,
		})
	}
}

func determineMode(d deps.Deps, components map[string]componentStatus) string {
	if d.RunStatus().Runs == 0 {
		return "starting"
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "ok"
}

func daemonStatus(d deps.Deps) componentStatus {
	st := d.RunStatus()
	runs := st.Runs
	c := componentStatus{
		OK:       st.LastError == "",
		Endpoint: d.DaemonURL,
		Runs:     &runs,
		Error:    st.LastError,
	}
	if !st.LastRunAt.IsZero() {
		c.LastRun = st.LastRunAt.UTC().Format(time.RFC3339)
	}
	return c
}

func schedulerStatus(d deps.Deps) componentStatus {
	c := componentStatus{OK: true, Mode: "one-shot"}
	if d.NextRun == nil {
		return c
	}
	c.Mode = "cron"
	if next := d.NextRun(); !next.IsZero() {
		c.NextRun = next.UTC().Format(time.RFC3339)
	}
	return c
}

func policyStatus(d deps.Deps) componentStatus {
	p := d.Policy()
	dry := p.DryRun
	c := componentStatus{
		OK:     true,
		Source: d.PolicySource,
		DryRun: &dry,
		Labels: p.Labels,
	}
	if len(p.Labels) == 0 {
		c.Mode = "idle"
		c.Error = "label allow-list is empty"
	}
	return c
}

func checkRunLock(ctx context.Context, d deps.Deps) componentStatus {
	if d.RunLock == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RunLock.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "redis", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "redis"}
}
