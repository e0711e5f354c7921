// Package breaker implements the process-wide trading circuit breaker.
package breaker

import (
	"fmt"
	"time"

	"github.com/helmtrade/helm/internal/core"
)

// VolatilitySettings controls spike detection and the temporary halt.
// Both spike tests may be configured; either one alone triggering counts as a
// spike (flagged for product clarification, see DESIGN.md).
type VolatilitySettings struct {
	// MinSamples is the history size required before spikes can be detected.
	MinSamples int
	// MaxSamples bounds the ATR history; the oldest sample is dropped first.
	MaxSamples int
	// ATRMultiplier flags a spike when atr > mean(history) * multiplier. Zero disables.
	ATRMultiplier float64
	// ThresholdPct flags a spike when atr > mean(history) * (1 + pct/100). Zero disables.
	ThresholdPct float64
	// HaltDuration is how long a volatility halt lasts before trading resumes.
	HaltDuration time.Duration
}

// DefaultVolatilitySettings returns settings tuned for one-minute ATR samples.
func DefaultVolatilitySettings() VolatilitySettings {
	return VolatilitySettings{
		MinSamples:    20,
		MaxSamples:    120,
		ATRMultiplier: 2.0,
		HaltDuration:  30 * time.Minute,
	}
}

// Validate rejects unusable volatility settings at construction.
func (s VolatilitySettings) Validate() error {
	if s.MinSamples <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("volatility min_samples must be positive, got %d", s.MinSamples))
	}
	if s.MaxSamples < s.MinSamples {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("volatility max_samples %d below min_samples %d", s.MaxSamples, s.MinSamples))
	}
	if s.ATRMultiplier <= 0 && s.ThresholdPct <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("at least one of atr_multiplier or threshold_pct must be set"))
	}
	if s.ATRMultiplier < 0 || (s.ATRMultiplier > 0 && s.ATRMultiplier <= 1) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("atr_multiplier must exceed 1, got %g", s.ATRMultiplier))
	}
	if s.ThresholdPct < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("threshold_pct cannot be negative, got %g", s.ThresholdPct))
	}
	if s.HaltDuration <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("halt_duration must be positive, got %s", s.HaltDuration))
	}
	return nil
}

// LossStreakSettings controls loss-streak alerting and kill eligibility.
type LossStreakSettings struct {
	// Window is the rolling window inside which losses are counted.
	Window time.Duration
	// AlertOnLosses raises the non-blocking loss-streak alert.
	AlertOnLosses int
	// ConsecutiveLossesThreshold makes the kill switch eligible.
	ConsecutiveLossesThreshold int
	// DailyLossKillPct makes the kill switch eligible once cumulative daily
	// loss reaches this percent of equity.
	DailyLossKillPct float64
}

// DefaultLossStreakSettings returns settings for an intraday account.
func DefaultLossStreakSettings() LossStreakSettings {
	return LossStreakSettings{
		Window:                     4 * time.Hour,
		AlertOnLosses:              2,
		ConsecutiveLossesThreshold: 3,
		DailyLossKillPct:           5.0,
	}
}

// Validate rejects unusable loss-streak settings at construction.
func (s LossStreakSettings) Validate() error {
	if s.Window <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("loss window must be positive, got %s", s.Window))
	}
	if s.AlertOnLosses <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("alert_on_losses must be positive, got %d", s.AlertOnLosses))
	}
	if s.ConsecutiveLossesThreshold < s.AlertOnLosses {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("consecutive_losses_threshold %d below alert_on_losses %d",
				s.ConsecutiveLossesThreshold, s.AlertOnLosses))
	}
	if s.DailyLossKillPct <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("daily_loss_kill_pct must be positive, got %g", s.DailyLossKillPct))
	}
	return nil
}
