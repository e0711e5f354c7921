package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helmtrade/helm/internal/breaker"
	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/meta"
	"github.com/helmtrade/helm/internal/regime"
	"github.com/helmtrade/helm/internal/risk"
	"github.com/helmtrade/helm/internal/strategy"
)

// DecisionSink receives every finished decision. Sink failures are logged
// and never fail the cycle.
type DecisionSink interface {
	Record(ctx context.Context, d core.Decision) error
}

// CycleInput carries the per-symbol market inputs for one decision cycle.
type CycleInput struct {
	Window  core.FeatureWindow
	Higher  core.FeatureWindow
	Quality core.MarketQuality
}

// OrderPlan is the sized and risk-checked order for a selected candidate.
// Approved is false when sizing failed or a risk limit rejected the order;
// Reason then explains which one.
type OrderPlan struct {
	Symbol    string                    `json:"symbol"`
	Direction core.Direction            `json:"direction"`
	Quantity  decimal.Decimal           `json:"quantity"`
	Entry     decimal.Decimal           `json:"entry"`
	Stop      decimal.Decimal           `json:"stop"`
	Analysis  risk.PositionSizeAnalysis `json:"analysis"`
	Approved  bool                      `json:"approved"`
	Reason    string                    `json:"reason,omitempty"`
}

// CycleResult pairs a decision with the order it produced, if any.
type CycleResult struct {
	Decision core.Decision
	Order    *OrderPlan
}

// Engine runs the full decision cycle for a symbol: breaker gate, regime
// scoring, candidate collection, arbitration, a second breaker gate, then
// position sizing and risk validation for the winner.
type Engine struct {
	scorer    *regime.Scorer
	collector *strategy.Collector
	arbiter   *meta.Arbiter
	risk      *risk.Manager
	breaker   *breaker.CircuitBreaker
	logger    *zap.Logger

	mu    sync.Mutex
	now   func() time.Time
	sinks []DecisionSink
}

func New(scorer *regime.Scorer, collector *strategy.Collector, arbiter *meta.Arbiter, riskMgr *risk.Manager, cb *breaker.CircuitBreaker, logger ...*zap.Logger) *Engine {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Engine{
		scorer:    scorer,
		collector: collector,
		arbiter:   arbiter,
		risk:      riskMgr,
		breaker:   cb,
		logger:    l,
		now:       time.Now,
	}
}

// AddSink registers a decision sink.
func (e *Engine) AddSink(s DecisionSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// SetClock overrides the time source. Safe to call while cycles run.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}

// RunCycle executes one decision cycle. The breaker is consulted twice: once
// before any work, and again immediately before risk validation so that a
// halt raised mid-cycle still blocks the order. The second halt keeps the
// arbitration result for audit but produces no order.
func (e *Engine) RunCycle(ctx context.Context, symbol string, input CycleInput) (CycleResult, error) {
	if err := ctx.Err(); err != nil {
		return CycleResult{}, err
	}

	if ok, reason := e.breaker.CanTrade(); !ok {
		e.logger.Info("cycle skipped, trading halted",
			zap.String("symbol", symbol),
			zap.String("reason", reason),
		)
		return CycleResult{Decision: e.emit(ctx, e.haltedDecision(symbol, reason))}, nil
	}

	scores := e.scorer.Score(input.Window)
	higher := e.scorer.Score(input.Higher)
	candidates := e.collector.Collect(input.Window)

	decision := e.arbiter.Decide(symbol, candidates, scores, input.Quality, higher)
	decision.BreakerState = string(e.breaker.State())

	if ok, reason := e.breaker.CanTrade(); !ok {
		decision.Halted = true
		decision.HaltReason = reason
		decision.BreakerState = string(e.breaker.State())
		e.logger.Warn("halt raised mid-cycle, order suppressed",
			zap.String("symbol", symbol),
			zap.String("reason", reason),
		)
		return CycleResult{Decision: e.emit(ctx, decision)}, nil
	}

	var order *OrderPlan
	if sel := decision.Selected(); sel != nil && sel.Direction != core.DirectionFlat {
		order = e.planOrder(symbol, *sel, input.Window)
	}

	return CycleResult{Decision: e.emit(ctx, decision), Order: order}, nil
}

// RunAll runs one cycle per symbol concurrently. The breaker and account
// state serialize internally, so cycles only contend on those.
func (e *Engine) RunAll(ctx context.Context, inputs map[string]CycleInput) ([]CycleResult, error) {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([]CycleResult, 0, len(inputs))

	for symbol, input := range inputs {
		g.Go(func() error {
			res, err := e.RunCycle(ctx, symbol, input)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) planOrder(symbol string, sel core.ScoredCandidate, w core.FeatureWindow) *OrderPlan {
	plan := &OrderPlan{
		Symbol:    symbol,
		Direction: sel.Direction,
		Stop:      decimal.NewFromFloat(sel.StopPrice),
	}

	entry, ok := w.Last(core.FeatureClose)
	if !ok || entry <= 0 {
		plan.Reason = "no entry price in feature window"
		e.logger.Warn("cannot size order", zap.String("symbol", symbol), zap.String("reason", plan.Reason))
		return plan
	}
	plan.Entry = decimal.NewFromFloat(entry)

	analysis, err := e.risk.CalculatePositionSize(sel.Direction, plan.Entry, plan.Stop)
	if err != nil {
		plan.Reason = err.Error()
		e.logger.Warn("position sizing rejected",
			zap.String("symbol", symbol),
			zap.String("strategy", sel.Strategy),
			zap.Error(err),
		)
		return plan
	}
	plan.Analysis = analysis
	plan.Quantity = analysis.Quantity

	ok, reason := e.risk.ValidateOrder(symbol, plan.Quantity, plan.Entry, plan.Stop)
	plan.Approved = ok
	plan.Reason = reason
	if !ok {
		e.logger.Info("order rejected by risk limits",
			zap.String("symbol", symbol),
			zap.String("reason", reason),
		)
	}
	return plan
}

func (e *Engine) haltedDecision(symbol, reason string) core.Decision {
	return core.Decision{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		At:            e.clock(),
		SelectedIndex: -1,
		BreakerState:  string(e.breaker.State()),
		Halted:        true,
		HaltReason:    reason,
	}
}

func (e *Engine) emit(ctx context.Context, d core.Decision) core.Decision {
	e.mu.Lock()
	sinks := make([]DecisionSink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.Unlock()

	for _, s := range sinks {
		if err := s.Record(ctx, d); err != nil {
			e.logger.Warn("decision sink failed",
				zap.String("decision_id", d.ID),
				zap.Error(err),
			)
		}
	}
	return d
}
