package meta

import (
	"time"

	"github.com/helmtrade/helm/internal/core"
)

// HygieneConfig holds the market-quality gates.
type HygieneConfig struct {
	// MaxSpreadPct rejects candidates when the spread percentage exceeds it.
	MaxSpreadPct float64
	// MaxATRPct rejects candidates during volatility extremes.
	MaxATRPct float64
	// MaxBookAge is the oldest acceptable order-book snapshot.
	MaxBookAge time.Duration
	// AllowAnomalyOverride skips the data-anomaly gate. Only for
	// non-production test environments.
	AllowAnomalyOverride bool
}

// DefaultHygieneConfig returns conservative gate values.
func DefaultHygieneConfig() HygieneConfig {
	return HygieneConfig{
		MaxSpreadPct: 0.15,
		MaxATRPct:    6.0,
		MaxBookAge:   5 * time.Second,
	}
}

// Hygiene rejects candidates under unsafe microstructure conditions.
type Hygiene struct {
	cfg HygieneConfig
}

// NewHygiene creates a hygiene filter.
func NewHygiene(cfg HygieneConfig) *Hygiene {
	return &Hygiene{cfg: cfg}
}

// Check runs every gate against the market-quality snapshot and returns all
// failing reasons. The first entry is the primary rejection reason; the full
// slice feeds the arbiter's rejection summary. An empty result means the
// candidate passed.
func (h *Hygiene) Check(_ core.SignalCandidate, q core.MarketQuality) []core.RejectReason {
	var reasons []core.RejectReason

	if h.cfg.MaxSpreadPct > 0 && q.SpreadPct > h.cfg.MaxSpreadPct {
		reasons = append(reasons, core.RejectSpread)
	}
	if h.cfg.MaxATRPct > 0 && q.ATRPct > h.cfg.MaxATRPct {
		reasons = append(reasons, core.RejectATR)
	}
	if q.DataAnomaly && !h.cfg.AllowAnomalyOverride {
		reasons = append(reasons, core.RejectAnomaly)
	}
	if !q.BookValid || (h.cfg.MaxBookAge > 0 && q.BookAge > h.cfg.MaxBookAge) {
		reasons = append(reasons, core.RejectStaleBook)
	}

	return reasons
}
