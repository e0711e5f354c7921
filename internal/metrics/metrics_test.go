package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision() core.Decision {
	return core.Decision{
		ID:     "d-1",
		Symbol: "BTC-USD",
		At:     time.Now(),
		Regime: core.RegimeScores{Label: core.RegimeTrendUp},
		Candidates: []core.ScoredCandidate{
			{SignalCandidate: core.SignalCandidate{Strategy: "trend_follow"}, Selected: true},
			{SignalCandidate: core.SignalCandidate{Strategy: "mean_revert"}, Rejected: true},
		},
		SelectedIndex: 0,
		RejectionCounts: map[core.RejectReason]int{
			core.RejectSpread: 1,
		},
		BreakerState: "ACTIVE",
	}
}

func TestRegistry_RecordDecision(t *testing.T) {
	r := metrics.NewRegistry()

	require.NoError(t, r.Record(context.Background(), sampleDecision()))

	families, err := r.Gather()
	require.NoError(t, err)

	values := map[string]bool{}
	for _, f := range families {
		values[f.GetName()] = true
	}
	assert.True(t, values["helm_decisions_total"])
	assert.True(t, values["helm_candidates_total"])
	assert.True(t, values["helm_candidate_rejections_total"])
	assert.True(t, values["helm_regime_labels_total"])
	assert.True(t, values["helm_breaker_state"])
}

func TestRegistry_HaltedDecisionSkipsRegime(t *testing.T) {
	r := metrics.NewRegistry()

	d := sampleDecision()
	d.Halted = true
	d.SelectedIndex = -1
	require.NoError(t, r.Record(context.Background(), d))

	families, err := r.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "helm_regime_labels_total", f.GetName(),
			"halted cycles classify no regime")
	}
}

func TestRegistry_BreakerStateGaugeIsExclusive(t *testing.T) {
	r := metrics.NewRegistry()

	r.SetBreakerState("KILL_SWITCH")
	r.SetBreakerState("ACTIVE")

	families, err := r.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "helm_breaker_state" {
			continue
		}
		for _, m := range f.GetMetric() {
			want := 0.0
			for _, l := range m.GetLabel() {
				if l.GetName() == "state" && l.GetValue() == "ACTIVE" {
					want = 1.0
				}
			}
			assert.Equal(t, want, m.GetGauge().GetValue())
		}
	}
}

func TestRegistry_RecordOrder(t *testing.T) {
	r := metrics.NewRegistry()

	r.RecordOrder("BTC-USD", true)
	r.RecordOrder("BTC-USD", false)
	r.RecordOrder("BTC-USD", false)

	families, err := r.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "helm_orders_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" {
					counts[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, counts["approved"])
	assert.Equal(t, 2.0, counts["rejected"])
}
