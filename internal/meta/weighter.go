package meta

import (
	"github.com/helmtrade/helm/internal/core"
)

// Weighter combines a per-strategy base weight with a per-regime multiplier.
// Missing entries default to neutral 1.0 rather than zero, so an unconfigured
// strategy is never silently excluded from arbitration.
type Weighter struct {
	base       map[string]float64
	regimeMult map[string]map[core.RegimeLabel]float64
}

// NewWeighter creates a weighter from static configuration.
func NewWeighter(base map[string]float64, regimeMult map[string]map[core.RegimeLabel]float64) *Weighter {
	if base == nil {
		base = make(map[string]float64)
	}
	if regimeMult == nil {
		regimeMult = make(map[string]map[core.RegimeLabel]float64)
	}
	return &Weighter{base: base, regimeMult: regimeMult}
}

// Weight returns base_weight(strategy) * regime_multiplier(strategy, label).
func (w *Weighter) Weight(strategyID string, label core.RegimeLabel) float64 {
	base, ok := w.base[strategyID]
	if !ok {
		base = 1.0
	}

	mult := 1.0
	if perRegime, ok := w.regimeMult[strategyID]; ok {
		if m, ok := perRegime[label]; ok {
			mult = m
		}
	}

	return base * mult
}
