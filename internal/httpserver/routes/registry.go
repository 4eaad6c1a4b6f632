package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
)

// Registrar attaches one group of endpoints to the router.
type Registrar func(r chi.Router, d deps.Deps)

// Group is a named set of endpoints. Enabled, when set, decides from the
// wiring whether the group is mounted at all.
type Group struct {
	Name    string
	Mount   Registrar
	Enabled func(d deps.Deps) bool
}

var groups []Group

// Register adds a group; called from init() in each route file.
func Register(g Group) {
	groups = append(groups, g)
}

// MountAll attaches every enabled group and returns the names it mounted.
func MountAll(r chi.Router, d deps.Deps) []string {
	mounted := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Enabled != nil && !g.Enabled(d) {
			continue
		}
		g.Mount(r, d)
		mounted = append(mounted, g.Name)
	}
	return mounted
}
