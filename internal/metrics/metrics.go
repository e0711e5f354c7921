package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/helmtrade/helm/internal/core"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	decisionsTotal  *prometheus.CounterVec
	candidatesTotal *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	regimeLabels    *prometheus.CounterVec
	ordersTotal     *prometheus.CounterVec
	breakerTrips    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	cycleDuration   prometheus.Histogram
}

// BreakerStates enumerates the states tracked by the breaker state gauge.
var BreakerStates = []string{"ACTIVE", "VOLATILITY_HALT", "LOSS_STREAK_ALERT", "KILL_SWITCH"}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_decisions_total",
				Help: "Total number of decision cycles by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		candidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_candidates_total",
				Help: "Total number of candidates collected per strategy",
			},
			[]string{"strategy"},
		),
		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_candidate_rejections_total",
				Help: "Total number of candidate rejections by reason",
			},
			[]string{"reason"},
		),
		regimeLabels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_regime_labels_total",
				Help: "Total number of cycles per classified regime",
			},
			[]string{"symbol", "label"},
		),
		ordersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_orders_total",
				Help: "Total number of sized orders by validation status",
			},
			[]string{"symbol", "status"},
		),
		breakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helm_breaker_trips_total",
				Help: "Total number of circuit breaker transitions into a blocking state",
			},
			[]string{"state"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helm_breaker_state",
				Help: "Current circuit breaker state, 1 for the active state and 0 otherwise",
			},
			[]string{"state"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "helm_cycle_duration_seconds",
				Help:    "Decision cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(r.decisionsTotal)
	reg.MustRegister(r.candidatesTotal)
	reg.MustRegister(r.rejectionsTotal)
	reg.MustRegister(r.regimeLabels)
	reg.MustRegister(r.ordersTotal)
	reg.MustRegister(r.breakerTrips)
	reg.MustRegister(r.breakerState)
	reg.MustRegister(r.cycleDuration)

	return r
}

// Record derives metrics from a finished decision. It satisfies the engine's
// decision sink interface so the registry can be wired directly into the
// cycle.
func (r *Registry) Record(_ context.Context, d core.Decision) error {
	outcome := "no_selection"
	switch {
	case d.Halted:
		outcome = "halted"
	case d.Selected() != nil:
		outcome = "selected"
	}
	r.decisionsTotal.WithLabelValues(d.Symbol, outcome).Inc()

	if !d.Halted {
		r.regimeLabels.WithLabelValues(d.Symbol, string(d.Regime.Label)).Inc()
	}
	for _, c := range d.Candidates {
		r.candidatesTotal.WithLabelValues(c.Strategy).Inc()
	}
	for reason, n := range d.RejectionCounts {
		r.rejectionsTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	r.SetBreakerState(d.BreakerState)
	return nil
}

// RecordOrder records a sized order and whether risk validation approved it.
func (r *Registry) RecordOrder(symbol string, approved bool) {
	status := "rejected"
	if approved {
		status = "approved"
	}
	r.ordersTotal.WithLabelValues(symbol, status).Inc()
}

// RecordBreakerTrip records a transition into a blocking breaker state.
func (r *Registry) RecordBreakerTrip(state string) {
	r.breakerTrips.WithLabelValues(state).Inc()
}

// SetBreakerState marks one state as current and clears the others.
func (r *Registry) SetBreakerState(state string) {
	if state == "" {
		return
	}
	for _, s := range BreakerStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.breakerState.WithLabelValues(s).Set(v)
	}
}

// RecordCycleDuration records one decision cycle duration.
func (r *Registry) RecordCycleDuration(seconds float64) {
	r.cycleDuration.Observe(seconds)
}
