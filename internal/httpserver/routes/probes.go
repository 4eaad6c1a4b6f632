package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/handlers"
)

func init() { Register(Group{Name: "probes", Mount: registerProbes}) }

// Probes stay open: kubelet and compose healthchecks come from anywhere.
func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
}
