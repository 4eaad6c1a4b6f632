package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
)

func Metrics(d deps.Deps) http.Handler {
	if d.Metrics == nil {
		return http.NotFoundHandler()
	}
	return d.Metrics
}
