package routes

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	reg Registrar
	mws []Middleware
}

var registry = map[string]group{}

// Register adds a named route group with optional middlewares applied to
// all of its routes. Names are unique.
func Register(name string, reg Registrar, mws ...Middleware) {
	if _, dup := registry[name]; dup {
		panic("routes: duplicate route group " + name)
	}
	registry[name] = group{reg: reg, mws: mws}
}

// RegisterAll mounts every group in name order and returns the names.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := registry[name]
		if len(g.mws) == 0 {
			g.reg(r, d)
			continue
		}
		g.reg(r.With(g.mws...), d)
	}
	return names
}
