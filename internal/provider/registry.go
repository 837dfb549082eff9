package provider

import "sync"

// Registry holds all registered provider adapters keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]TrackProvider
	order     []ProviderName
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderName]TrackProvider),
	}
}

// Register adds a provider to the registry. Registering a name twice
// replaces the adapter but keeps its original position.
func (r *Registry) Register(p TrackProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name ProviderName) TrackProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// All returns all registered providers in registration order.
func (r *Registry) All() []TrackProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]TrackProvider, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.providers[name])
	}
	return result
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ProviderName(nil), r.order...)
}
