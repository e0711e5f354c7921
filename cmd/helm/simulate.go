package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/breaker"
	"github.com/helmtrade/helm/internal/config"
	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/engine"
	"github.com/helmtrade/helm/internal/indicator"
	"github.com/helmtrade/helm/internal/logger"
	"github.com/helmtrade/helm/internal/meta"
	"github.com/helmtrade/helm/internal/metrics"
	"github.com/helmtrade/helm/internal/notifier"
	"github.com/helmtrade/helm/internal/notifier/webhook"
	"github.com/helmtrade/helm/internal/regime"
	"github.com/helmtrade/helm/internal/risk"
	"github.com/helmtrade/helm/internal/storage/archive"
	"github.com/helmtrade/helm/internal/storage/decision"
	"github.com/helmtrade/helm/internal/strategy"
)

var (
	simCycles   int
	simInterval time.Duration
	simSeed     int64
	simEquity   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run decision cycles against a synthetic market",
	Long: `Simulate drives the full decision pipeline with generated market data:
synthetic candidate producers, regime scoring, arbitration, risk checks and
the circuit breaker, with metrics exposed over HTTP.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simCycles, "cycles", 20, "number of decision cycles to run")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "delay between cycles")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 42, "random seed for the synthetic market")
	simulateCmd.Flags().Float64Var(&simEquity, "equity", 100000, "starting account equity in USD")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log := logger.Must(debug || cfg.Observability.Development, cfg.Observability.LogLevel)
	defer log.Sync()

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{"BTC-USD", "ETH-USD"}
	}

	registry := strategy.NewRegistry()
	if err := registry.Register(&momentumProducer{}); err != nil {
		return err
	}
	if err := registry.Register(&meanRevertProducer{}); err != nil {
		return err
	}

	base, regimeWeights := cfg.Weights()
	arbiter := meta.NewArbiter(
		meta.NewScaler(cfg.Scalings()),
		meta.NewWeighter(base, regimeWeights),
		meta.NewHygiene(cfg.HygieneFilter()),
		meta.NewConfluence(cfg.ConfluenceGate()),
		registry,
		log,
	)

	account := risk.NewAccountState()
	equity := decimal.NewFromFloat(simEquity)
	if err := account.SetSnapshot(risk.Snapshot{Equity: equity, Cash: equity}); err != nil {
		return err
	}
	manager, err := risk.NewManager(cfg.Limits(), account, log)
	if err != nil {
		return err
	}

	vol, losses := cfg.BreakerSettings()
	cb, err := breaker.New(vol, losses, log)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	store := decision.NewMemoryStore(cfg.Store.MaxDecisions)

	eng := engine.New(
		regime.NewScorer(cfg.Thresholds(), log),
		strategy.NewCollector(registry, log),
		arbiter,
		manager,
		cb,
		log,
	)
	eng.AddSink(store)
	eng.AddSink(reg)

	if cfg.Archive.Enabled {
		backend, err := archiveBackend(cfg)
		if err != nil {
			return err
		}
		eng.AddSink(archive.NewArchiver(backend, log))
	}

	notifiers := notifier.NewRegistry()
	for name, nc := range cfg.Notifiers {
		if !nc.Enabled {
			continue
		}
		w := webhook.New(nc.URL, nc.Headers)
		if err := notifiers.Register(w); err != nil {
			log.Warn("notifier registration failed", zap.String("notifier", name), zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("interrupted, stopping simulation")
		cancel()
	}()

	var metricsSrv *http.Server
	if cfg.Observability.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Observability.Metrics.Listen, Handler: mux}
		go func() {
			log.Info("metrics endpoint up",
				zap.String("listen", cfg.Observability.Metrics.Listen),
				zap.String("path", cfg.Observability.Metrics.Path),
			)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsSrv.Close()
	}

	market := newSyntheticMarket(symbols, simSeed)
	lastState := cb.State()

	log.Info("simulation starting",
		zap.Strings("symbols", symbols),
		zap.Int("cycles", simCycles),
		zap.Duration("interval", simInterval),
	)

	ticker := time.NewTicker(simInterval)
	defer ticker.Stop()

	for cycle := 0; cycle < simCycles; cycle++ {
		if ctx.Err() != nil {
			break
		}

		inputs := market.step()
		watchVolatility(cb, inputs, log)

		started := time.Now()
		results, err := eng.RunAll(ctx, inputs)
		if err != nil {
			return err
		}
		reg.RecordCycleDuration(time.Since(started).Seconds())

		for _, res := range results {
			if res.Order == nil {
				continue
			}
			reg.RecordOrder(res.Order.Symbol, res.Order.Approved)
			if res.Order.Approved {
				settleOrder(cb, market, res.Order, equity, notifiers, log)
			}
		}

		if state := cb.State(); state != lastState {
			reg.RecordBreakerTrip(string(state))
			alert := notifier.BreakerAlert(string(state), "state transition during simulation", time.Now())
			for name, nerr := range notifiers.NotifyAll(alert) {
				log.Warn("alert delivery failed", zap.String("notifier", name), zap.Error(nerr))
			}
			lastState = state
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	printSummary(ctx, store, cb)
	return nil
}

func archiveBackend(cfg *config.Config) (archive.Storage, error) {
	if cfg.Archive.Type == "s3" {
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	}
	return archive.NewLocalFS(cfg.Archive.Path)
}

// watchVolatility feeds per-symbol ATR samples to the breaker and halts on a
// detected spike.
func watchVolatility(cb *breaker.CircuitBreaker, inputs map[string]engine.CycleInput, log *zap.Logger) {
	for symbol, input := range inputs {
		atr, ok := input.Window.Last(core.FeatureATRPct)
		if !ok {
			continue
		}
		if spike, reason := cb.CheckVolatility(atr); spike {
			log.Warn("volatility spike detected", zap.String("symbol", symbol), zap.String("reason", reason))
			cb.TriggerVolatilityHalt(reason)
		}
		cb.RecordVolatilitySample(atr)
	}
}

// settleOrder resolves an approved order against the synthetic market and
// records losses with the breaker.
func settleOrder(cb *breaker.CircuitBreaker, market *syntheticMarket, order *engine.OrderPlan, equity decimal.Decimal, notifiers *notifier.Registry, log *zap.Logger) {
	if market.rng.Float64() >= 0.45 {
		return // winner, nothing for the breaker
	}

	loss := order.Analysis.RiskBudget
	status := cb.RecordLoss(loss)
	log.Info("simulated loss",
		zap.String("symbol", order.Symbol),
		zap.String("loss", loss.String()),
		zap.Int("losses_in_window", status.LossesInWindow),
	)

	if status.Alert {
		alert := notifier.LossStreakAlert(status.LossesInWindow, time.Now())
		for name, nerr := range notifiers.NotifyAll(alert) {
			log.Warn("alert delivery failed", zap.String("notifier", name), zap.Error(nerr))
		}
	}

	if status.KillEligible || cb.DailyLossBreached(equity) {
		actions := cb.TriggerKillSwitch(fmt.Sprintf("%d losses in window", status.LossesInWindow))
		log.Error("kill switch tripped", zap.Any("actions", actions))
	}
}

func printSummary(ctx context.Context, store *decision.MemoryStore, cb *breaker.CircuitBreaker) {
	total, _ := store.Count(ctx, decision.ListFilter{})
	selected, _ := store.Count(ctx, decision.ListFilter{OnlySelected: true})
	halted, _ := store.Count(ctx, decision.ListFilter{OnlyHalted: true})

	fmt.Println("simulation finished")
	fmt.Printf("  decisions:     %d\n", total)
	fmt.Printf("  selected:      %d\n", selected)
	fmt.Printf("  halted cycles: %d\n", halted)
	fmt.Printf("  breaker state: %s\n", cb.State())
	fmt.Printf("  daily loss:    %s\n", cb.DailyLoss())
}

// syntheticMarket generates plausible feature windows per symbol with a
// random walk that occasionally shocks into a volatile phase.
type syntheticMarket struct {
	rng    *rand.Rand
	closes map[string][]float64
}

const marketBars = 16

func newSyntheticMarket(symbols []string, seed int64) *syntheticMarket {
	m := &syntheticMarket{
		rng:    rand.New(rand.NewSource(seed)),
		closes: make(map[string][]float64, len(symbols)),
	}
	for _, s := range symbols {
		price := 1000 + m.rng.Float64()*50000
		series := make([]float64, marketBars)
		for i := range series {
			price *= 1 + m.rng.NormFloat64()*0.004
			series[i] = price
		}
		m.closes[s] = series
	}
	return m
}

// step advances every symbol one bar and returns the cycle inputs.
func (m *syntheticMarket) step() map[string]engine.CycleInput {
	inputs := make(map[string]engine.CycleInput, len(m.closes))
	for symbol, series := range m.closes {
		drift := m.rng.NormFloat64() * 0.004
		if m.rng.Float64() < 0.03 {
			drift *= 10 // volatility shock
		}
		next := series[len(series)-1] * (1 + drift)
		series = append(series[1:], next)
		m.closes[symbol] = series

		w := indicator.FeaturesFromCloses(series)
		inputs[symbol] = engine.CycleInput{
			Window: w,
			Higher: w,
			Quality: core.MarketQuality{
				SpreadPct: 0.01 + m.rng.Float64()*0.05,
				ATRPct:    mustLast(w, core.FeatureATRPct),
				BookValid: true,
				BookAge:   time.Duration(m.rng.Intn(3000)) * time.Millisecond,
			},
		}
	}
	return inputs
}

func mustLast(w core.FeatureWindow, name string) float64 {
	v, _ := w.Last(name)
	return v
}

// momentumProducer goes with the short-term trend.
type momentumProducer struct{}

func (momentumProducer) Name() string        { return "momentum" }
func (momentumProducer) Description() string { return "synthetic trend-following producer" }

func (momentumProducer) Generate(w core.FeatureWindow) (*core.SignalCandidate, error) {
	fast, okF := w.Last(core.FeatureEMAFast)
	slow, okS := w.Last(core.FeatureEMASlow)
	closePx, okC := w.Last(core.FeatureClose)
	if !okF || !okS || !okC {
		return nil, nil
	}

	spread := (fast - slow) / slow
	if math.Abs(spread) < 0.002 {
		return nil, nil
	}

	cand := &core.SignalCandidate{
		Confidence:  math.Min(1, math.Abs(spread)*100),
		ATR:         closePx * 0.01,
		GeneratedAt: time.Now(),
	}
	if spread > 0 {
		cand.Direction = core.DirectionLong
		cand.StopPrice = closePx * 0.95
		cand.TargetPrice = closePx * 1.10
	} else {
		cand.Direction = core.DirectionShort
		cand.StopPrice = closePx * 1.05
		cand.TargetPrice = closePx * 0.90
	}
	return cand, nil
}

// meanRevertProducer fades stretched moves.
type meanRevertProducer struct{}

func (meanRevertProducer) Name() string        { return "mean_revert" }
func (meanRevertProducer) Description() string { return "synthetic mean-reversion producer" }

func (meanRevertProducer) Generate(w core.FeatureWindow) (*core.SignalCandidate, error) {
	fast, okF := w.Last(core.FeatureEMAFast)
	slow, okS := w.Last(core.FeatureEMASlow)
	closePx, okC := w.Last(core.FeatureClose)
	if !okF || !okS || !okC {
		return nil, nil
	}

	stretch := (fast - slow) / slow
	if math.Abs(stretch) < 0.01 {
		return nil, nil
	}

	cand := &core.SignalCandidate{
		Confidence:  math.Min(1, math.Abs(stretch)*50),
		ATR:         closePx * 0.01,
		GeneratedAt: time.Now(),
	}
	if stretch > 0 {
		cand.Direction = core.DirectionShort
		cand.StopPrice = closePx * 1.04
		cand.TargetPrice = closePx * 0.96
	} else {
		cand.Direction = core.DirectionLong
		cand.StopPrice = closePx * 0.96
		cand.TargetPrice = closePx * 1.04
	}
	return cand, nil
}
