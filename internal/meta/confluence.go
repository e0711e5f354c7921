package meta

import (
	"github.com/helmtrade/helm/internal/core"
)

// ConfluenceConfig controls the cross-timeframe confirmation gate.
type ConfluenceConfig struct {
	Enabled bool
	// NeutralMultiplier applies when the higher timeframe is neither
	// agreeing nor opposing (range, chop, high vol, unknown).
	NeutralMultiplier float64
}

// DefaultConfluenceConfig returns the gate disabled with a mild neutral haircut.
func DefaultConfluenceConfig() ConfluenceConfig {
	return ConfluenceConfig{
		Enabled:           false,
		NeutralMultiplier: 0.75,
	}
}

// Confluence scales a candidate by its agreement with a higher timeframe.
type Confluence struct {
	cfg ConfluenceConfig
}

// NewConfluence creates the confluence gate.
func NewConfluence(cfg ConfluenceConfig) *Confluence {
	return &Confluence{cfg: cfg}
}

// Multiplier returns a factor in [0,1]. Disabled gates always return 1.
// A higher timeframe trending against the candidate returns 0, which the
// arbiter treats as a rejection with its own reason code. Agreement scales
// with the higher timeframe's trend score.
func (c *Confluence) Multiplier(cand core.SignalCandidate, higher core.RegimeScores) float64 {
	if !c.cfg.Enabled {
		return 1.0
	}

	var higherDir float64
	switch higher.Label {
	case core.RegimeTrendUp:
		higherDir = 1
	case core.RegimeTrendDown:
		higherDir = -1
	}

	var candDir float64
	switch cand.Direction {
	case core.DirectionLong:
		candDir = 1
	case core.DirectionShort:
		candDir = -1
	default:
		// Flat candidates close exposure; confirmation does not apply.
		return 1.0
	}

	switch {
	case higherDir == 0:
		return c.cfg.NeutralMultiplier
	case higherDir == candDir:
		return 0.5 + 0.5*higher.Trend
	default:
		return 0
	}
}
