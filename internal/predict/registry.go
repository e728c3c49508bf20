package predict

import (
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Registry is the explicit, process-wide set of loaded prediction systems.
// It is constructed once at startup and passed by reference into every
// request handler; it is read-only after construction and therefore safe for
// concurrent use without locking.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a Registry with the default base systems.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: []Adapter{
			&movingAverageSystem{},
			&zoneMatchupSystem{},
			&similaritySystem{},
			&restProfileSystem{},
		},
	}
	for _, a := range r.adapters {
		spec := a.Spec()
		logger.Infof("Registered prediction system '%s' (scale: %s, requires: %v).",
			spec.SystemID, spec.ConfidenceScale, spec.Requires)
	}
	return r
}

// NewRegistryWith creates a Registry with an explicit adapter set (tests,
// partial deployments).
func NewRegistryWith(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// AnyRequiresHistory reports whether at least one registered system declares
// a history requirement. The handler loads history once per player when true,
// since the load cost is shared across all systems.
func (r *Registry) AnyRequiresHistory() bool {
	for _, a := range r.adapters {
		if a.Spec().RequiresInput(model.RequiresHistory) {
			return true
		}
	}
	return false
}

// Size returns the number of registered base systems.
func (r *Registry) Size() int {
	return len(r.adapters)
}
