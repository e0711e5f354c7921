package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helmtrade/helm/internal/breaker"
	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/engine"
	"github.com/helmtrade/helm/internal/meta"
	"github.com/helmtrade/helm/internal/regime"
	"github.com/helmtrade/helm/internal/risk"
	"github.com/helmtrade/helm/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedStrategy returns a preset candidate. The hook runs on every Generate
// call, which lets tests trip the breaker mid-cycle and count invocations.
type fixedStrategy struct {
	name string
	cand *core.SignalCandidate
	hook func()
}

func (s *fixedStrategy) Name() string        { return s.name }
func (s *fixedStrategy) Description() string { return "fixed candidate for tests" }

func (s *fixedStrategy) Generate(core.FeatureWindow) (*core.SignalCandidate, error) {
	if s.hook != nil {
		s.hook()
	}
	if s.cand == nil {
		return nil, nil
	}
	c := *s.cand
	return &c, nil
}

type memorySink struct {
	mu        sync.Mutex
	decisions []core.Decision
}

func (m *memorySink) Record(_ context.Context, d core.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *memorySink) all() []core.Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Decision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

type failingSink struct{}

func (failingSink) Record(context.Context, core.Decision) error {
	return errors.New("sink unavailable")
}

func repeat(v float64, n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = v
	}
	return col
}

func ramp(start, step float64, n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = start + step*float64(i)
	}
	return col
}

// trendingInput is a healthy trending-up market with the last close at 50000.
func trendingInput() engine.CycleInput {
	w := core.FeatureWindow{
		Bars: 10,
		Columns: map[string][]float64{
			core.FeatureADX:       repeat(40, 10),
			core.FeatureDIPlus:    repeat(30, 10),
			core.FeatureDIMinus:   repeat(10, 10),
			core.FeatureEMAFast:   repeat(105, 10),
			core.FeatureEMASlow:   repeat(100, 10),
			core.FeatureBandWidth: ramp(0.05, 0.005, 10),
			core.FeatureATRPct:    repeat(1.5, 10),
			core.FeatureClose:     repeat(50000, 10),
		},
	}
	return engine.CycleInput{
		Window: w,
		Higher: w,
		Quality: core.MarketQuality{
			SpreadPct: 0.01,
			ATRPct:    1.5,
			BookValid: true,
			BookAge:   time.Second,
		},
	}
}

func longCandidate(stop float64) *core.SignalCandidate {
	return &core.SignalCandidate{
		Direction:   core.DirectionLong,
		Confidence:  0.8,
		StopPrice:   stop,
		TargetPrice: 60000,
		ATR:         750,
		GeneratedAt: time.Now(),
	}
}

type harness struct {
	engine  *engine.Engine
	breaker *breaker.CircuitBreaker
	sink    *memorySink
}

func newHarness(t *testing.T, strategies ...strategy.Strategy) *harness {
	t.Helper()

	registry := strategy.NewRegistry()
	for _, s := range strategies {
		require.NoError(t, registry.Register(s))
	}

	arbiter := meta.NewArbiter(
		meta.NewScaler(nil),
		meta.NewWeighter(nil, nil),
		meta.NewHygiene(meta.DefaultHygieneConfig()),
		meta.NewConfluence(meta.DefaultConfluenceConfig()),
		registry,
	)

	account := risk.NewAccountState()
	require.NoError(t, account.SetSnapshot(risk.Snapshot{
		Equity: decimal.NewFromInt(10000),
		Cash:   decimal.NewFromInt(10000),
	}))
	limits := risk.Limits{
		RiskPerTradePct:    decimal.NewFromInt(1),
		MaxLeverage:        decimal.NewFromInt(5),
		MaxNotionalUSD:     decimal.NewFromInt(25000),
		MaxOpenExposureUSD: decimal.NewFromInt(50000),
		MaxDailyLossPct:    decimal.NewFromInt(3),
		MaxOpenPositions:   5,
		MinStopDistancePct: decimal.RequireFromString("0.1"),
	}
	manager, err := risk.NewManager(limits, account)
	require.NoError(t, err)

	cb, err := breaker.New(breaker.DefaultVolatilitySettings(), breaker.DefaultLossStreakSettings())
	require.NoError(t, err)

	eng := engine.New(
		regime.NewScorer(regime.DefaultThresholds()),
		strategy.NewCollector(registry),
		arbiter,
		manager,
		cb,
	)
	sink := &memorySink{}
	eng.AddSink(sink)

	return &harness{engine: eng, breaker: cb, sink: sink}
}

func TestRunCycle_SelectsAndSizesOrder(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)

	require.NotNil(t, res.Decision.Selected())
	assert.Equal(t, "trend_follow", res.Decision.Selected().Strategy)
	assert.False(t, res.Decision.Halted)
	assert.Equal(t, string(breaker.StateActive), res.Decision.BreakerState)

	// equity=10000, risk=1%, entry=50000, stop=45000 => qty 0.02
	require.NotNil(t, res.Order)
	assert.True(t, res.Order.Approved, res.Order.Reason)
	assert.True(t, res.Order.Quantity.Equal(decimal.RequireFromString("0.02")),
		"got quantity %s", res.Order.Quantity)
	assert.True(t, res.Order.Entry.Equal(decimal.NewFromInt(50000)))

	recorded := h.sink.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, res.Decision.ID, recorded[0].ID)
}

func TestRunCycle_HaltGateShortCircuits(t *testing.T) {
	calls := 0
	h := newHarness(t, &fixedStrategy{
		name: "trend_follow",
		cand: longCandidate(45000),
		hook: func() { calls++ },
	})
	h.breaker.TriggerKillSwitch("operator stop")

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)

	assert.True(t, res.Decision.Halted)
	assert.Contains(t, res.Decision.HaltReason, "kill switch")
	assert.Equal(t, string(breaker.StateKillSwitch), res.Decision.BreakerState)
	assert.Empty(t, res.Decision.Candidates)
	assert.Nil(t, res.Decision.Selected())
	assert.Nil(t, res.Order)
	assert.Equal(t, 0, calls, "strategies must not run while halted")

	// Halted cycles are still recorded for audit.
	require.Len(t, h.sink.all(), 1)
}

func TestRunCycle_HaltRaisedMidCycleSuppressesOrder(t *testing.T) {
	var h *harness
	h = newHarness(t, &fixedStrategy{
		name: "trend_follow",
		cand: longCandidate(45000),
		hook: func() { h.breaker.TriggerKillSwitch("loss streak") },
	})

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)

	// The first gate passed, so arbitration ran and is kept for audit.
	assert.NotEmpty(t, res.Decision.Candidates)
	assert.True(t, res.Decision.Halted)
	assert.Contains(t, res.Decision.HaltReason, "kill switch")
	assert.Equal(t, string(breaker.StateKillSwitch), res.Decision.BreakerState)
	assert.Nil(t, res.Order, "a halt raised mid-cycle must block the order")
}

func TestRunCycle_FlatSelectionProducesNoOrder(t *testing.T) {
	h := newHarness(t, &fixedStrategy{
		name: "stand_aside",
		cand: &core.SignalCandidate{Direction: core.DirectionFlat, Confidence: 0.9, GeneratedAt: time.Now()},
	})

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)

	assert.Nil(t, res.Order)
}

func TestRunCycle_RiskRejectionKeepsDecision(t *testing.T) {
	// A tight stop blows up the computed size: entry=50000, stop=49900
	// => qty 1, notional 50000, above the 25000 notional cap.
	h := newHarness(t, &fixedStrategy{name: "scalper", cand: longCandidate(49900)})

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)

	require.NotNil(t, res.Decision.Selected())
	require.NotNil(t, res.Order)
	assert.False(t, res.Order.Approved)
	assert.NotEmpty(t, res.Order.Reason)
}

func TestRunCycle_SinkFailureDoesNotFailCycle(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})
	h.engine.AddSink(failingSink{})

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)
	assert.NotNil(t, res.Decision.Selected())

	// The healthy sink still received the decision.
	require.Len(t, h.sink.all(), 1)
}

func TestRunCycle_ContextCanceled(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.RunCycle(ctx, "BTC-USD", trendingInput())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.sink.all())
}

func TestRunAll_RunsEverySymbol(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})

	inputs := map[string]engine.CycleInput{
		"BTC-USD": trendingInput(),
		"ETH-USD": trendingInput(),
		"SOL-USD": trendingInput(),
	}

	results, err := h.engine.RunAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	seen := map[string]bool{}
	for _, res := range results {
		seen[res.Decision.Symbol] = true
	}
	assert.Len(t, seen, 3)
	assert.Len(t, h.sink.all(), 3)
}

func TestSetClock_StampsHaltedDecisions(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})
	h.breaker.TriggerKillSwitch("operator stop")

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	h.engine.SetClock(func() time.Time { return at })

	res, err := h.engine.RunCycle(context.Background(), "BTC-USD", trendingInput())
	require.NoError(t, err)
	assert.True(t, res.Decision.At.Equal(at), "halted decision stamped %s", res.Decision.At)
}

func TestSetClock_ConcurrentWithCycles(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})
	h.breaker.TriggerKillSwitch("operator stop")

	inputs := map[string]engine.CycleInput{
		"BTC-USD": trendingInput(),
		"ETH-USD": trendingInput(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			h.engine.SetClock(time.Now)
		}
	}()

	for i := 0; i < 20; i++ {
		_, err := h.engine.RunAll(context.Background(), inputs)
		require.NoError(t, err)
	}
	<-done
}

func TestRunAll_PropagatesCancellation(t *testing.T) {
	h := newHarness(t, &fixedStrategy{name: "trend_follow", cand: longCandidate(45000)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.RunAll(ctx, map[string]engine.CycleInput{"BTC-USD": trendingInput()})
	assert.ErrorIs(t, err, context.Canceled)
}
