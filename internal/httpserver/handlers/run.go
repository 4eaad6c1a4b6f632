package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sweep/internal/logger"
)

// Run queues a manual sweep. The trigger channel holds one pending request;
// anything beyond that is rejected rather than stacked.
func Run(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.RunTrigger <- struct{}{}:
			d.Logger.Info("manual run triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Run triggered\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("manual run already queued",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Run already queued, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}
