package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/mw"
)

func init() { Register(Group{Name: "status", Mount: registerStatus}) }

func registerStatus(r chi.Router, d deps.Deps) {
	allow := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	r.With(allow).Get("/status", handlers.Status(d))
	r.With(allow).Handle("/metrics", handlers.Metrics(d))
}
