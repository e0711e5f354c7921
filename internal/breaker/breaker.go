package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the discrete circuit-breaker state.
type State string

const (
	StateActive          State = "ACTIVE"
	StateVolatilityHalt  State = "VOLATILITY_HALT"
	StateLossStreakAlert State = "LOSS_STREAK_ALERT"
	StateKillSwitch      State = "KILL_SWITCH"
)

// EnforcementAction is an action the execution collaborator must carry out
// after a kill switch. The breaker only requests these; it never touches the
// exchange itself.
type EnforcementAction string

const (
	ActionCancelAllOrders   EnforcementAction = "cancel_all_orders"
	ActionCloseAllPositions EnforcementAction = "close_all_positions"
	ActionBlockNewOrders    EnforcementAction = "block_new_orders"
	ActionAlertOperator     EnforcementAction = "alert_operator"
)

// KillActions is every enforcement action required after a kill switch.
func KillActions() []EnforcementAction {
	return []EnforcementAction{
		ActionCancelAllOrders,
		ActionCloseAllPositions,
		ActionBlockNewOrders,
		ActionAlertOperator,
	}
}

// LossStatus reports the effect of recording one loss.
type LossStatus struct {
	LossesInWindow int
	Alert          bool
	KillEligible   bool
}

// CircuitBreaker is the process-wide safety state machine. It is the only
// component in the decision core with cross-cycle memory; every read and
// write is serialized behind a single mutex so concurrent symbol cycles
// observe consistent state.
type CircuitBreaker struct {
	mu sync.Mutex

	state      State
	vol        VolatilitySettings
	losses     LossStreakSettings
	atrSamples []float64
	lossTimes  []time.Time
	dailyLoss  decimal.Decimal
	recoveryAt time.Time
	haltReason string
	killReason string

	// now is swappable so time-based transitions are testable.
	now    func() time.Time
	logger *zap.Logger
}

// New creates a circuit breaker in the ACTIVE state. Settings are validated
// here once; invalid settings are a fatal configuration error.
func New(vol VolatilitySettings, losses LossStreakSettings, logger ...*zap.Logger) (*CircuitBreaker, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if err := losses.Validate(); err != nil {
		return nil, err
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &CircuitBreaker{
		state:  StateActive,
		vol:    vol,
		losses: losses,
		now:    time.Now,
		logger: l,
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// State returns the current state, applying lazy halt recovery first.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.recoverLocked()
	return cb.state
}

// RecordVolatilitySample appends an ATR sample to the bounded history.
func (cb *CircuitBreaker) RecordVolatilitySample(atr float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.atrSamples = append(cb.atrSamples, atr)
	if len(cb.atrSamples) > cb.vol.MaxSamples {
		cb.atrSamples = cb.atrSamples[len(cb.atrSamples)-cb.vol.MaxSamples:]
	}
}

// CheckVolatility reports whether atr is a spike against the recorded
// history. Either configured test alone triggers. Detection does not change
// state: the caller decides whether to invoke TriggerVolatilityHalt.
func (cb *CircuitBreaker) CheckVolatility(atr float64) (bool, string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(cb.atrSamples) < cb.vol.MinSamples {
		return false, ""
	}

	sum := 0.0
	for _, s := range cb.atrSamples {
		sum += s
	}
	mean := sum / float64(len(cb.atrSamples))
	if mean <= 0 {
		return false, ""
	}

	if cb.vol.ATRMultiplier > 0 && atr > mean*cb.vol.ATRMultiplier {
		return true, fmt.Sprintf("atr %.4f exceeds %.1fx mean %.4f", atr, cb.vol.ATRMultiplier, mean)
	}
	if cb.vol.ThresholdPct > 0 && atr > mean*(1+cb.vol.ThresholdPct/100) {
		return true, fmt.Sprintf("atr %.4f exceeds mean %.4f by more than %.1f%%", atr, mean, cb.vol.ThresholdPct)
	}
	return false, ""
}

// TriggerVolatilityHalt moves to VOLATILITY_HALT and schedules recovery.
// A kill switch is more severe and is never downgraded.
func (cb *CircuitBreaker) TriggerVolatilityHalt(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateKillSwitch {
		return
	}
	cb.state = StateVolatilityHalt
	cb.haltReason = reason
	cb.recoveryAt = cb.now().Add(cb.vol.HaltDuration)
	cb.logger.Warn("volatility halt triggered",
		zap.String("reason", reason),
		zap.Time("recovery_at", cb.recoveryAt),
	)
}

// RecordLoss adds a loss to the rolling window and the daily accumulator.
// Reaching the alert threshold raises the non-blocking LOSS_STREAK_ALERT
// state. Reaching the kill threshold only reports eligibility; the kill
// switch itself requires an explicit TriggerKillSwitch call.
func (cb *CircuitBreaker) RecordLoss(amount decimal.Decimal) LossStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.lossTimes = append(cb.lossTimes, now)
	cb.pruneLossesLocked(now)
	cb.dailyLoss = cb.dailyLoss.Add(amount.Abs())

	status := LossStatus{LossesInWindow: len(cb.lossTimes)}
	status.KillEligible = status.LossesInWindow >= cb.losses.ConsecutiveLossesThreshold
	status.Alert = status.LossesInWindow >= cb.losses.AlertOnLosses

	if status.Alert && cb.state == StateActive {
		cb.state = StateLossStreakAlert
		cb.logger.Warn("loss streak alert",
			zap.Int("losses_in_window", status.LossesInWindow),
			zap.String("daily_loss", cb.dailyLoss.String()),
		)
	}
	return status
}

// DailyLossBreached reports whether cumulative daily loss has reached the
// kill percentage of equity.
func (cb *CircuitBreaker) DailyLossBreached(equity decimal.Decimal) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if equity.LessThanOrEqual(decimal.Zero) {
		return false
	}
	threshold := equity.Mul(decimal.NewFromFloat(cb.losses.DailyLossKillPct)).Div(decimal.NewFromInt(100))
	return cb.dailyLoss.GreaterThanOrEqual(threshold)
}

// DailyLoss returns the cumulative realized loss recorded today.
func (cb *CircuitBreaker) DailyLoss() decimal.Decimal {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.dailyLoss
}

// TriggerKillSwitch moves to KILL_SWITCH from any state and returns the
// enforcement actions the execution collaborator must carry out. Only
// ManualReset exits this state.
func (cb *CircuitBreaker) TriggerKillSwitch(reason string) []EnforcementAction {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateKillSwitch
	cb.killReason = reason
	cb.logger.Error("kill switch triggered", zap.String("reason", reason))
	return KillActions()
}

// ManualReset returns to ACTIVE from KILL_SWITCH. This is deliberately the
// only exit: a human must acknowledge the kill before trading resumes.
func (cb *CircuitBreaker) ManualReset() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateKillSwitch {
		return false
	}
	cb.state = StateActive
	cb.killReason = ""
	cb.haltReason = ""
	cb.recoveryAt = time.Time{}
	cb.lossTimes = nil
	cb.logger.Info("kill switch manually reset")
	return true
}

// ResetForNewDay clears the rolling loss history and the daily accumulator.
// The current state is untouched: a kill switch persists across the day
// boundary until manually reset.
func (cb *CircuitBreaker) ResetForNewDay() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lossTimes = nil
	cb.dailyLoss = decimal.Zero
}

// CanTrade reports whether new orders may be placed, with the blocking
// reason when not. LOSS_STREAK_ALERT is advisory and does not block.
func (cb *CircuitBreaker) CanTrade() (bool, string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.recoverLocked()

	switch cb.state {
	case StateKillSwitch:
		return false, fmt.Sprintf("kill switch: %s", cb.killReason)
	case StateVolatilityHalt:
		return false, fmt.Sprintf("volatility halt until %s: %s",
			cb.recoveryAt.Format(time.RFC3339), cb.haltReason)
	default:
		return true, ""
	}
}

// recoverLocked applies lazy volatility-halt expiry. Callers hold the mutex.
func (cb *CircuitBreaker) recoverLocked() {
	if cb.state == StateVolatilityHalt && !cb.recoveryAt.IsZero() && !cb.now().Before(cb.recoveryAt) {
		cb.state = StateActive
		cb.haltReason = ""
		cb.recoveryAt = time.Time{}
		cb.logger.Info("volatility halt recovered")
	}
}

// pruneLossesLocked drops losses older than the rolling window.
func (cb *CircuitBreaker) pruneLossesLocked(now time.Time) {
	cutoff := now.Add(-cb.losses.Window)
	kept := cb.lossTimes[:0]
	for _, t := range cb.lossTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.lossTimes = kept
}
