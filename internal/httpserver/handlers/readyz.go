package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready         bool   `json:"ready"`
	LastSuccessAt string `json:"last_success_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// Readyz turns ready after the first successful run and stays ready, so a
// transient daemon outage does not get the pod restarted.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.RunStatus()

		resp := readyzResponse{
			Ready:     st.Ready(),
			LastError: st.LastError,
		}
		if resp.Ready {
			resp.LastSuccessAt = st.LastSuccessAt.UTC().Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
