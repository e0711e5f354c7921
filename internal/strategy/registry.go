package strategy

import (
	"fmt"
	"sync"
)

// Registry holds strategies in registration order. The order is part of the
// arbitration contract: equal final scores are broken in favor of the
// earlier-registered strategy, so registration must be explicit and fixed at
// startup.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	byName     map[string]int
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register appends a strategy. Registering the same name twice is a
// configuration error.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name()]; exists {
		return fmt.Errorf("strategy %q already registered", s.Name())
	}
	r.byName[s.Name()] = len(r.strategies)
	r.strategies = append(r.strategies, s)
	return nil
}

// Get retrieves a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.strategies[i], true
}

// Order returns the registration index for a strategy name, or -1.
func (r *Registry) Order(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byName[name]; ok {
		return i
	}
	return -1
}

// All returns the strategies in registration order.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}
