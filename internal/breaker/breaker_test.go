package breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helmtrade/helm/internal/breaker"
	"github.com/helmtrade/helm/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newBreaker(t *testing.T) (*breaker.CircuitBreaker, *fakeClock) {
	t.Helper()
	cb, err := breaker.New(
		breaker.VolatilitySettings{
			MinSamples:    20,
			MaxSamples:    50,
			ATRMultiplier: 2.0,
			HaltDuration:  30 * time.Minute,
		},
		breaker.LossStreakSettings{
			Window:                     4 * time.Hour,
			AlertOnLosses:              2,
			ConsecutiveLossesThreshold: 3,
			DailyLossKillPct:           5.0,
		},
	)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
	cb.SetClock(clock.Now)
	return cb, clock
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := breaker.New(
		breaker.VolatilitySettings{MinSamples: 0, MaxSamples: 10, ATRMultiplier: 2, HaltDuration: time.Minute},
		breaker.DefaultLossStreakSettings(),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = breaker.New(
		breaker.DefaultVolatilitySettings(),
		breaker.LossStreakSettings{Window: time.Hour, AlertOnLosses: 3, ConsecutiveLossesThreshold: 2, DailyLossKillPct: 5},
	)
	require.Error(t, err)

	// Both spike tests disabled is unusable.
	_, err = breaker.New(
		breaker.VolatilitySettings{MinSamples: 5, MaxSamples: 10, HaltDuration: time.Minute},
		breaker.DefaultLossStreakSettings(),
	)
	require.Error(t, err)
}

func TestVolatilitySpikeAndTimedHalt(t *testing.T) {
	cb, clock := newBreaker(t)

	// Not enough history: no spike regardless of value.
	spike, _ := cb.CheckVolatility(1000)
	assert.False(t, spike)

	for i := 0; i < 20; i++ {
		cb.RecordVolatilitySample(100)
	}

	spike, reason := cb.CheckVolatility(250)
	assert.True(t, spike, "250 against mean 100 with 2.0x multiplier is a spike")
	assert.NotEmpty(t, reason)

	spike, _ = cb.CheckVolatility(150)
	assert.False(t, spike, "150 is below 2x mean")

	// Detection alone never halts; the caller triggers explicitly.
	ok, _ := cb.CanTrade()
	assert.True(t, ok)

	cb.TriggerVolatilityHalt(reason)
	assert.Equal(t, breaker.StateVolatilityHalt, cb.State())

	ok, blockReason := cb.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, blockReason, "volatility halt")

	// Still halted one minute before recovery.
	clock.Advance(29 * time.Minute)
	ok, _ = cb.CanTrade()
	assert.False(t, ok)

	// Past the recovery time the halt lazily expires.
	clock.Advance(2 * time.Minute)
	ok, _ = cb.CanTrade()
	assert.True(t, ok)
	assert.Equal(t, breaker.StateActive, cb.State())
}

func TestVolatilityPercentageTest(t *testing.T) {
	pctOnly, err := breaker.New(
		breaker.VolatilitySettings{
			MinSamples:   5,
			MaxSamples:   10,
			ThresholdPct: 50,
			HaltDuration: time.Minute,
		},
		breaker.DefaultLossStreakSettings(),
	)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		pctOnly.RecordVolatilitySample(100)
	}

	spike, _ := pctOnly.CheckVolatility(160)
	assert.True(t, spike, "160 exceeds mean 100 by more than 50%")

	spike, _ = pctOnly.CheckVolatility(140)
	assert.False(t, spike)
}

func TestCanTrade_Idempotent(t *testing.T) {
	cb, _ := newBreaker(t)

	first, _ := cb.CanTrade()
	for i := 0; i < 10; i++ {
		ok, reason := cb.CanTrade()
		assert.Equal(t, first, ok)
		assert.Empty(t, reason)
		assert.Equal(t, breaker.StateActive, cb.State())
	}
}

func TestLossStreak_AlertThenKillThenManualReset(t *testing.T) {
	cb, _ := newBreaker(t)
	loss := decimal.NewFromInt(50)

	status := cb.RecordLoss(loss)
	assert.False(t, status.Alert)
	assert.False(t, status.KillEligible)
	assert.Equal(t, breaker.StateActive, cb.State())

	// Second loss reaches the alert threshold: advisory only.
	status = cb.RecordLoss(loss)
	assert.True(t, status.Alert)
	assert.False(t, status.KillEligible)
	assert.Equal(t, breaker.StateLossStreakAlert, cb.State())
	ok, _ := cb.CanTrade()
	assert.True(t, ok, "loss streak alert must not block trading")

	// Third loss makes the kill switch eligible but does not trip it.
	status = cb.RecordLoss(loss)
	assert.True(t, status.KillEligible)
	ok, _ = cb.CanTrade()
	assert.True(t, ok, "kill requires an explicit trigger")

	actions := cb.TriggerKillSwitch("3 losses in window")
	assert.Equal(t, breaker.StateKillSwitch, cb.State())
	assert.ElementsMatch(t, breaker.KillActions(), actions)

	ok, reason := cb.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "kill switch")
	assert.Contains(t, reason, "3 losses in window")

	// No timer clears a kill switch.
	require.True(t, cb.ManualReset())
	assert.Equal(t, breaker.StateActive, cb.State())
	ok, _ = cb.CanTrade()
	assert.True(t, ok)
}

func TestManualReset_OnlyFromKillSwitch(t *testing.T) {
	cb, _ := newBreaker(t)
	assert.False(t, cb.ManualReset())

	cb.TriggerVolatilityHalt("spike")
	assert.False(t, cb.ManualReset(), "manual reset is for the kill switch, not halts")
	assert.Equal(t, breaker.StateVolatilityHalt, cb.State())
}

func TestKillSwitchWinsOverVolatilityHalt(t *testing.T) {
	cb, clock := newBreaker(t)

	cb.TriggerVolatilityHalt("spike")
	cb.TriggerKillSwitch("loss streak while halted")
	assert.Equal(t, breaker.StateKillSwitch, cb.State())

	// A halt trigger never downgrades an active kill switch.
	cb.TriggerVolatilityHalt("another spike")
	assert.Equal(t, breaker.StateKillSwitch, cb.State())

	// The halt timer does not clear a kill switch either.
	clock.Advance(2 * time.Hour)
	ok, reason := cb.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "kill switch")
}

func TestLossWindow_OldLossesExpire(t *testing.T) {
	cb, clock := newBreaker(t)
	loss := decimal.NewFromInt(10)

	cb.RecordLoss(loss)
	cb.RecordLoss(loss)

	// Outside the 4h window the streak resets; a new loss counts alone.
	clock.Advance(5 * time.Hour)
	status := cb.RecordLoss(loss)
	assert.Equal(t, 1, status.LossesInWindow)
	assert.False(t, status.Alert)

	// The daily accumulator is unaffected by window pruning.
	assert.True(t, cb.DailyLoss().Equal(decimal.NewFromInt(30)))
}

func TestDailyLossBreached(t *testing.T) {
	cb, _ := newBreaker(t)
	equity := decimal.NewFromInt(10000)

	cb.RecordLoss(decimal.NewFromInt(499))
	assert.False(t, cb.DailyLossBreached(equity))

	cb.RecordLoss(decimal.NewFromInt(1))
	assert.True(t, cb.DailyLossBreached(equity), "500 is 5 percent of 10000")
}

func TestResetForNewDay_PreservesState(t *testing.T) {
	cb, _ := newBreaker(t)

	cb.RecordLoss(decimal.NewFromInt(600))
	cb.TriggerKillSwitch("daily loss breach")

	cb.ResetForNewDay()

	assert.True(t, cb.DailyLoss().IsZero())
	assert.Equal(t, breaker.StateKillSwitch, cb.State(),
		"a kill switch persists across the day boundary until manually reset")
	ok, _ := cb.CanTrade()
	assert.False(t, ok)
}
