// Package risk sizes positions and enforces hard account limits.
// All monetary and quantity values use exact decimal arithmetic: a float
// feeding an order or a limit comparison could accumulate rounding error and
// silently cross a limit.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/helmtrade/helm/internal/core"
)

// Limits is the immutable hard-limit configuration. It is validated once at
// construction; an invalid set is a fatal startup error, never a per-cycle
// condition.
type Limits struct {
	// RiskPerTradePct is the percent of equity risked between entry and stop.
	RiskPerTradePct decimal.Decimal
	// MaxLeverage caps notional / cash for a single order.
	MaxLeverage decimal.Decimal
	// MaxNotionalUSD caps the dollar size of a single order.
	MaxNotionalUSD decimal.Decimal
	// MaxOpenExposureUSD caps the summed notional across all open symbols.
	MaxOpenExposureUSD decimal.Decimal
	// MaxDailyLossPct halts new orders once realized daily loss reaches this percent of equity.
	MaxDailyLossPct decimal.Decimal
	// MaxOpenPositions caps concurrent open positions.
	MaxOpenPositions int
	// MinStopDistancePct guards the position-size division against near-zero stop distances.
	MinStopDistancePct decimal.Decimal
}

// DefaultLimits returns conservative limits for a small account.
func DefaultLimits() Limits {
	return Limits{
		RiskPerTradePct:    decimal.NewFromFloat(1.0),
		MaxLeverage:        decimal.NewFromInt(5),
		MaxNotionalUSD:     decimal.NewFromInt(25_000),
		MaxOpenExposureUSD: decimal.NewFromInt(50_000),
		MaxDailyLossPct:    decimal.NewFromFloat(3.0),
		MaxOpenPositions:   5,
		MinStopDistancePct: decimal.NewFromFloat(0.1),
	}
}

// Validate rejects zero or negative limit values.
func (l Limits) Validate() error {
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"risk_per_trade_pct", l.RiskPerTradePct},
		{"max_leverage", l.MaxLeverage},
		{"max_notional_usd", l.MaxNotionalUSD},
		{"max_open_exposure_usd", l.MaxOpenExposureUSD},
		{"max_daily_loss_pct", l.MaxDailyLossPct},
		{"min_stop_distance_pct", l.MinStopDistancePct},
	}
	for _, c := range checks {
		if c.value.LessThanOrEqual(decimal.Zero) {
			return core.WrapError(core.ErrLimitsInvalid,
				fmt.Errorf("%s must be positive, got %s", c.name, c.value))
		}
	}
	if l.MaxOpenPositions <= 0 {
		return core.WrapError(core.ErrLimitsInvalid,
			fmt.Errorf("max_open_positions must be positive, got %d", l.MaxOpenPositions))
	}
	if l.RiskPerTradePct.GreaterThan(decimal.NewFromInt(100)) {
		return core.WrapError(core.ErrLimitsInvalid,
			fmt.Errorf("risk_per_trade_pct cannot exceed 100, got %s", l.RiskPerTradePct))
	}
	return nil
}
