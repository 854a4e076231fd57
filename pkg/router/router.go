package router

import (
	"errors"

	"github.com/gemrelay/gemrelay/pkg/config"
)

// ErrNoProviders is returned when no provider is configured.
var ErrNoProviders = errors.New("no providers configured")

// Route represents a resolved provider and model.
type Route struct {
	Engine   string
	Provider config.ProviderConfig
	Model    string
}

// Router resolves engine names to a provider+model pair.
type Router struct {
	cfg *config.Config
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg}
}

// Resolve returns the route for engine. Lookup order is a configured engine
// alias, then a provider with that name, then the default engine, then the
// first provider. An empty engine selects the default.
func (r *Router) Resolve(engine string) (Route, error) {
	if len(r.cfg.Providers) == 0 {
		return Route{}, ErrNoProviders
	}

	if engine != "" {
		if route, ok := r.lookup(engine); ok {
			return route, nil
		}
	}
	if def := r.cfg.Router.DefaultEngine; def != "" {
		if route, ok := r.lookup(def); ok {
			return route, nil
		}
	}

	p := r.cfg.Providers[0]
	return Route{Engine: p.Name, Provider: p, Model: p.Model}, nil
}

// Known reports whether engine names a configured alias or provider.
func (r *Router) Known(engine string) bool {
	_, ok := r.lookup(engine)
	return ok
}

// Engines lists the selectable engine names, aliases first.
func (r *Router) Engines() []string {
	var names []string
	seen := make(map[string]bool)
	for _, e := range r.cfg.Router.Engines {
		if _, ok := r.lookup(e.Name); ok && !seen[e.Name] {
			names = append(names, e.Name)
			seen[e.Name] = true
		}
	}
	for _, p := range r.cfg.Providers {
		if !seen[p.Name] {
			names = append(names, p.Name)
			seen[p.Name] = true
		}
	}
	return names
}

func (r *Router) lookup(engine string) (Route, bool) {
	for _, e := range r.cfg.Router.Engines {
		if e.Name != engine {
			continue
		}
		p, ok := r.provider(e.Provider)
		if !ok {
			continue // skip aliases pointing at unknown providers
		}
		model := e.Model
		if model == "" {
			model = p.Model
		}
		return Route{Engine: e.Name, Provider: p, Model: model}, true
	}

	if p, ok := r.provider(engine); ok {
		return Route{Engine: p.Name, Provider: p, Model: p.Model}, true
	}
	return Route{}, false
}

func (r *Router) provider(name string) (config.ProviderConfig, bool) {
	for _, p := range r.cfg.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return config.ProviderConfig{}, false
}
