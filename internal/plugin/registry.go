package plugin

import (
	"sync"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/plugin/strategies"
)

// Factory builds a fresh plugin instance. Construction takes no arguments;
// all strategy state derives from the bars it is given.
type Factory func() interfaces.StrategyPlugin

// Registry maps exported strategy type names to factories. The bias engine
// and orchestrator never learn how a plugin was materialized; this boundary
// is where dynamic strategies would plug in a sandboxed interpreter.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds a type name to its factory, replacing any previous binding.
func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// New instantiates the named strategy, or reports false if unregistered.
func (r *Registry) New(typeName string) (interfaces.StrategyPlugin, bool) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names lists registered type names, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}

// DefaultRegistry returns a registry with the built-in strategies bound.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("SMACross", func() interfaces.StrategyPlugin { return strategies.NewSMACross() })
	return r
}
