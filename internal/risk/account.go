package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/helmtrade/helm/internal/core"
)

// OpenPosition is the tracked size of one open symbol.
type OpenPosition struct {
	Quantity decimal.Decimal
	Notional decimal.Decimal
}

// Snapshot is one externally supplied view of the account. The account-state
// collaborator refreshes it once per cycle; this core never fetches it.
type Snapshot struct {
	Equity            decimal.Decimal
	Cash              decimal.Decimal
	OpenPositions     map[string]OpenPosition
	RealizedDailyLoss decimal.Decimal // positive value, dollars lost today
}

// AccountState is the process-wide mutable account view shared by concurrent
// symbol cycles. All reads and writes are serialized behind one mutex.
type AccountState struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewAccountState creates an empty account state.
func NewAccountState() *AccountState {
	return &AccountState{
		snap: Snapshot{OpenPositions: make(map[string]OpenPosition)},
	}
}

// SetSnapshot replaces the account view. A negative equity value is an
// un-handleable invariant violation and is rejected.
func (a *AccountState) SetSnapshot(s Snapshot) error {
	if s.Equity.IsNegative() {
		return core.WrapError(core.ErrAccountInvalid,
			fmt.Errorf("equity is negative: %s", s.Equity))
	}
	if s.OpenPositions == nil {
		s.OpenPositions = make(map[string]OpenPosition)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = s
	return nil
}

// Snapshot returns a copy of the current account view.
func (a *AccountState) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	positions := make(map[string]OpenPosition, len(a.snap.OpenPositions))
	for sym, p := range a.snap.OpenPositions {
		positions[sym] = p
	}
	out := a.snap
	out.OpenPositions = positions
	return out
}

// TotalExposure sums the open notional across all symbols.
func (s Snapshot) TotalExposure() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.OpenPositions {
		total = total.Add(p.Notional)
	}
	return total
}

// OpenCount returns the number of open positions.
func (s Snapshot) OpenCount() int {
	return len(s.OpenPositions)
}
