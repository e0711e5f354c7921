package notifier

import (
	"fmt"
	"sort"
	"sync"
)

// Registry fans alerts out to every registered notifier. Delivery order
// is sorted by name so failures are reproducible across runs.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds a notifier. Names must be unique.
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, dup := r.notifiers[name]; dup {
		return fmt.Errorf("notifier %s already registered", name)
	}
	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name.
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifiers[name]
	if !ok {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// Names lists registered notifier names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// GetAll returns all registered notifiers, ordered by name.
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Notifier, 0, len(r.notifiers))
	for _, name := range r.sortedNames() {
		all = append(all, r.notifiers[name])
	}
	return all
}

// NotifyAll delivers one alert everywhere. The returned map holds the
// error per failing notifier; an empty map means full delivery.
func (r *Registry) NotifyAll(alert Alert) map[string]error {
	return r.fanout(func(n Notifier) error { return n.Send(alert) })
}

// NotifyAllBatch delivers a batch of alerts everywhere.
func (r *Registry) NotifyAllBatch(alerts []Alert) map[string]error {
	return r.fanout(func(n Notifier) error { return n.SendBatch(alerts) })
}

func (r *Registry) fanout(deliver func(Notifier) error) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failures := make(map[string]error)
	for _, name := range r.sortedNames() {
		if err := deliver(r.notifiers[name]); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
