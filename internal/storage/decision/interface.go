// internal/storage/decision/interface.go
package decision

import (
	"context"
	"time"

	"github.com/helmtrade/helm/internal/core"
)

// Store defines the interface for decision persistence. Record matches the
// engine's decision sink, so a Store can be wired into the cycle directly.
type Store interface {
	// Record persists a finished decision.
	Record(ctx context.Context, d core.Decision) error

	// GetByID retrieves a decision by its ID.
	GetByID(ctx context.Context, id string) (*core.Decision, error)

	// List retrieves decisions matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.Decision, error)

	// Count returns the number of decisions matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing decisions.
type ListFilter struct {
	Symbol       string
	Strategy     string // matches the selected candidate's strategy
	Label        core.RegimeLabel
	OnlySelected bool
	OnlyHalted   bool
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}
