package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/core"
)

var oneHundred = decimal.NewFromInt(100)

// InvalidStopError reports a stop price that cannot produce a valid position
// size: wrong side of entry for the implied direction, or a stop distance
// below the configured minimum.
type InvalidStopError struct {
	Entry  decimal.Decimal
	Stop   decimal.Decimal
	Reason string
}

func (e *InvalidStopError) Error() string {
	return fmt.Sprintf("invalid stop %s for entry %s: %s", e.Stop, e.Entry, e.Reason)
}

// PositionSizeAnalysis is the result of risk-budget position sizing.
// Notional is exactly Quantity * Entry; no rounding happens between them.
type PositionSizeAnalysis struct {
	Entry            decimal.Decimal `json:"entry"`
	Stop             decimal.Decimal `json:"stop"`
	RiskBudget       decimal.Decimal `json:"risk_budget"`
	Quantity         decimal.Decimal `json:"quantity"`
	Notional         decimal.Decimal `json:"notional"`
	StopDistancePct  decimal.Decimal `json:"stop_distance_pct"`
	RequiredLeverage decimal.Decimal `json:"required_leverage"`
}

// Summary is a read-only projection of account usage against the limits.
type Summary struct {
	Equity             decimal.Decimal `json:"equity"`
	Cash               decimal.Decimal `json:"cash"`
	Exposure           decimal.Decimal `json:"exposure"`
	ExposureHeadroom   decimal.Decimal `json:"exposure_headroom"`
	OpenPositions      int             `json:"open_positions"`
	PositionsAvailable int             `json:"positions_available"`
	RealizedDailyLoss  decimal.Decimal `json:"realized_daily_loss"`
	DailyLossHeadroom  decimal.Decimal `json:"daily_loss_headroom"`
}

// Manager computes position sizes from the risk budget and validates orders
// against the hard limits.
type Manager struct {
	limits  Limits
	account *AccountState
	logger  *zap.Logger
}

// NewManager creates a risk manager. The limits are validated here, once;
// a failing limit set is a fatal configuration error.
func NewManager(limits Limits, account *AccountState, logger ...*zap.Logger) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Manager{limits: limits, account: account, logger: l}, nil
}

// Limits returns the configured limit set.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CalculatePositionSize derives quantity and notional from the risk budget
// and the stop distance:
//
//	risk_usd = equity * risk_percent / 100
//	qty      = risk_usd / |entry - stop|
//	notional = qty * entry
func (m *Manager) CalculatePositionSize(direction core.Direction, entry, stop decimal.Decimal) (PositionSizeAnalysis, error) {
	var analysis PositionSizeAnalysis

	if entry.LessThanOrEqual(decimal.Zero) || stop.LessThanOrEqual(decimal.Zero) {
		return analysis, &InvalidStopError{Entry: entry, Stop: stop, Reason: "prices must be positive"}
	}
	switch direction {
	case core.DirectionLong:
		if stop.GreaterThanOrEqual(entry) {
			return analysis, &InvalidStopError{Entry: entry, Stop: stop, Reason: "stop must be below entry for long"}
		}
	case core.DirectionShort:
		if stop.LessThanOrEqual(entry) {
			return analysis, &InvalidStopError{Entry: entry, Stop: stop, Reason: "stop must be above entry for short"}
		}
	default:
		return analysis, &InvalidStopError{Entry: entry, Stop: stop,
			Reason: fmt.Sprintf("direction %q cannot be sized", direction)}
	}

	distance := entry.Sub(stop).Abs()
	distancePct := distance.Div(entry).Mul(oneHundred)
	if distancePct.LessThan(m.limits.MinStopDistancePct) {
		return analysis, &InvalidStopError{
			Entry: entry,
			Stop:  stop,
			Reason: fmt.Sprintf("stop distance %s%% below minimum %s%%",
				distancePct, m.limits.MinStopDistancePct),
		}
	}

	snap := m.account.Snapshot()
	riskBudget := snap.Equity.Mul(m.limits.RiskPerTradePct).Div(oneHundred)
	qty := riskBudget.Div(distance)
	notional := qty.Mul(entry)

	analysis = PositionSizeAnalysis{
		Entry:           entry,
		Stop:            stop,
		RiskBudget:      riskBudget,
		Quantity:        qty,
		Notional:        notional,
		StopDistancePct: distancePct,
	}
	if snap.Cash.GreaterThan(decimal.Zero) {
		analysis.RequiredLeverage = notional.Div(snap.Cash)
	}

	return analysis, nil
}

// ValidateOrder checks the proposed order against every hard limit, in order,
// returning on the first failure with the offending numbers embedded in the
// reason. The stop price travels with the order for audit even though no
// limit below consumes it directly.
func (m *Manager) ValidateOrder(symbol string, qty, entry, stop decimal.Decimal) (bool, string) {
	if qty.LessThanOrEqual(decimal.Zero) || entry.LessThanOrEqual(decimal.Zero) {
		return false, fmt.Sprintf("invalid order: qty=%s entry=%s must be positive", qty, entry)
	}

	snap := m.account.Snapshot()
	notional := qty.Mul(entry)

	if snap.Cash.LessThanOrEqual(decimal.Zero) {
		return false, fmt.Sprintf("no cash available: cash=%s", snap.Cash)
	}
	leverage := notional.Div(snap.Cash)
	if leverage.GreaterThan(m.limits.MaxLeverage) {
		return false, fmt.Sprintf("required leverage %s exceeds max_leverage %s (notional %s / cash %s)",
			leverage, m.limits.MaxLeverage, notional, snap.Cash)
	}

	if notional.GreaterThan(m.limits.MaxNotionalUSD) {
		return false, fmt.Sprintf("notional %s exceeds max_notional_usd %s",
			notional, m.limits.MaxNotionalUSD)
	}

	exposure := snap.TotalExposure()
	total := exposure.Add(notional)
	if total.GreaterThan(m.limits.MaxOpenExposureUSD) {
		return false, fmt.Sprintf("total exposure %s exceeds max_open_exposure_usd %s (open %s + order %s)",
			total, m.limits.MaxOpenExposureUSD, exposure, notional)
	}

	if _, open := snap.OpenPositions[symbol]; !open && snap.OpenCount() >= m.limits.MaxOpenPositions {
		return false, fmt.Sprintf("open positions %d at max_total_open_positions %d",
			snap.OpenCount(), m.limits.MaxOpenPositions)
	}

	maxDailyLoss := snap.Equity.Mul(m.limits.MaxDailyLossPct).Div(oneHundred)
	if snap.RealizedDailyLoss.GreaterThanOrEqual(maxDailyLoss) {
		return false, fmt.Sprintf("daily loss %s at limit %s (%s%% of equity %s)",
			snap.RealizedDailyLoss, maxDailyLoss, m.limits.MaxDailyLossPct, snap.Equity)
	}

	m.logger.Debug("order validated",
		zap.String("symbol", symbol),
		zap.String("qty", qty.String()),
		zap.String("entry", entry.String()),
		zap.String("stop", stop.String()),
		zap.String("notional", notional.String()),
	)
	return true, ""
}

// AccountSummary projects current usage and limit headroom. No side effects.
func (m *Manager) AccountSummary() Summary {
	snap := m.account.Snapshot()
	exposure := snap.TotalExposure()
	maxDailyLoss := snap.Equity.Mul(m.limits.MaxDailyLossPct).Div(oneHundred)

	return Summary{
		Equity:             snap.Equity,
		Cash:               snap.Cash,
		Exposure:           exposure,
		ExposureHeadroom:   m.limits.MaxOpenExposureUSD.Sub(exposure),
		OpenPositions:      snap.OpenCount(),
		PositionsAvailable: m.limits.MaxOpenPositions - snap.OpenCount(),
		RealizedDailyLoss:  snap.RealizedDailyLoss,
		DailyLossHeadroom:  maxDailyLoss.Sub(snap.RealizedDailyLoss),
	}
}
