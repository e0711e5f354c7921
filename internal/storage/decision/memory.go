// internal/storage/decision/memory.go
package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helmtrade/helm/internal/core"
)

// MemoryStore is a bounded in-memory decision store.
type MemoryStore struct {
	decisions []core.Decision
	maxSize   int
	mu        sync.RWMutex
	counter   int64
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		decisions: make([]core.Decision, 0, maxSize),
		maxSize:   maxSize,
	}
}

// Record adds a decision to the store. IDs assigned upstream are kept.
func (m *MemoryStore) Record(ctx context.Context, d core.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	if d.ID == "" {
		d.ID = fmt.Sprintf("dec_%d_%d", time.Now().UnixNano(), m.counter)
	}

	m.decisions = append(m.decisions, d)

	// Trim if over capacity (remove oldest)
	if len(m.decisions) > m.maxSize {
		m.decisions = m.decisions[len(m.decisions)-m.maxSize:]
	}

	return nil
}

// GetByID retrieves a decision by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.decisions {
		if m.decisions[i].ID == id {
			d := m.decisions[i]
			return &d, nil
		}
	}
	return nil, core.ErrDecisionNotFound
}

// List returns decisions matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Decision
	for i := len(m.decisions) - 1; i >= 0; i-- {
		if m.matches(m.decisions[i], filter) {
			result = append(result, m.decisions[i])
		}
	}

	// Apply offset and limit
	if filter.Offset > 0 && filter.Offset < len(result) {
		result = result[filter.Offset:]
	} else if filter.Offset >= len(result) && filter.Offset > 0 {
		return []core.Decision{}, nil
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching decisions.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, d := range m.decisions {
		if m.matches(d, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) matches(d core.Decision, filter ListFilter) bool {
	if filter.Symbol != "" && d.Symbol != filter.Symbol {
		return false
	}
	if filter.Label != "" && d.Regime.Label != filter.Label {
		return false
	}
	sel := d.Selected()
	if filter.Strategy != "" && (sel == nil || sel.Strategy != filter.Strategy) {
		return false
	}
	if filter.OnlySelected && sel == nil {
		return false
	}
	if filter.OnlyHalted && !d.Halted {
		return false
	}
	if !filter.From.IsZero() && d.At.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && d.At.After(filter.To) {
		return false
	}
	return true
}
