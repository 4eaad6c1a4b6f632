package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/mw"
)

// Manual runs only exist when a scheduler is listening on the trigger.
func init() {
	Register(Group{
		Name:    "run",
		Mount:   registerRun,
		Enabled: func(d deps.Deps) bool { return d.RunTrigger != nil },
	})
}

func registerRun(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:      d.RunBurst,
			PerMinute:  d.RunPerMinute,
			TrustProxy: d.TrustProxy,
		}),
	).Post("/run", handlers.Run(d))
}
