// Package regime classifies market conditions from indicator features.
package regime

import (
	"math"

	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/core"
)

// Thresholds holds the normalization thresholds for regime scoring.
type Thresholds struct {
	// TrendADX is the ADX level at which trend participation saturates.
	TrendADX float64
	// RangeADX is the ADX level below which the market reads as ranging.
	RangeADX float64
	// RangeBandWidth is the band-width level below which the market reads as ranging.
	RangeBandWidth float64
	// HighVolATRPct is the ATR percentage at which volatility saturates.
	HighVolATRPct float64
	// FlatATRSlope is the absolute ATR-percentage slope below which volatility reads as flat.
	FlatATRSlope float64
	// ChopDISpread is the |+DI - -DI| spread below which directional movement reads as whipsaw.
	ChopDISpread float64
	// SlopeLookback is the number of bars used for slope estimates.
	SlopeLookback int
	// LabelCutoff is the minimum score for trend/range/chop labels.
	LabelCutoff float64
	// HighVolCutoff is the minimum volatility score for the high_vol label.
	HighVolCutoff float64
}

// DefaultThresholds returns thresholds tuned for intraday crypto features.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendADX:       25,
		RangeADX:       20,
		RangeBandWidth: 0.04,
		HighVolATRPct:  3.0,
		FlatATRSlope:   0.05,
		ChopDISpread:   5,
		SlopeLookback:  5,
		LabelCutoff:    0.6,
		HighVolCutoff:  0.8,
	}
}

// Scorer converts a feature window into continuous regime scores and a label.
// Score never fails: missing or all-NaN inputs degrade to zero scores with a
// reason recorded per missing input.
type Scorer struct {
	th     Thresholds
	logger *zap.Logger
}

// NewScorer creates a regime scorer with the given thresholds.
func NewScorer(th Thresholds, logger ...*zap.Logger) *Scorer {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Scorer{th: th, logger: l}
}

// Score computes the four regime scores and derives the label.
func (s *Scorer) Score(w core.FeatureWindow) core.RegimeScores {
	var reasons []string

	adx, adxOK := w.Last(core.FeatureADX)
	if !adxOK {
		reasons = append(reasons, "missing adx")
	}
	diPlus, diPlusOK := w.Last(core.FeatureDIPlus)
	diMinus, diMinusOK := w.Last(core.FeatureDIMinus)
	diOK := diPlusOK && diMinusOK
	if !diOK {
		reasons = append(reasons, "missing directional movement")
	}
	emaFast, emaFastOK := w.Last(core.FeatureEMAFast)
	emaSlow, emaSlowOK := w.Last(core.FeatureEMASlow)
	emaOK := emaFastOK && emaSlowOK
	if !emaOK {
		reasons = append(reasons, "missing ema alignment")
	}
	bandWidth, bwOK := w.Last(core.FeatureBandWidth)
	if !bwOK {
		reasons = append(reasons, "missing band width")
	}
	atrPct, atrOK := w.Last(core.FeatureATRPct)
	if !atrOK {
		reasons = append(reasons, "missing atr pct")
	}
	atrSlope, atrSlopeOK := w.Slope(core.FeatureATRPct, s.th.SlopeLookback)
	if !atrSlopeOK {
		reasons = append(reasons, "missing atr slope")
	}
	bwSlope, bwSlopeOK := w.Slope(core.FeatureBandWidth, s.th.SlopeLookback)

	// Directional agreement between the EMA spread and the DI spread.
	direction := 0.0
	alignment := 0.0
	if emaOK {
		direction = sign(emaFast - emaSlow)
	} else if diOK {
		direction = sign(diPlus - diMinus)
	}
	if emaOK && diOK && sign(emaFast-emaSlow) == sign(diPlus-diMinus) && direction != 0 {
		alignment = 1.0
	}

	scores := core.RegimeScores{Label: core.RegimeUnknown, Reasons: reasons}

	// Trend: ADX strength, EMA/DI agreement and band expansion.
	if adxOK {
		expansion := 0.0
		if bwSlopeOK && bwSlope > 0 {
			expansion = 1.0
		}
		scores.Trend = clamp01(0.6*saturate(adx, s.th.TrendADX) + 0.3*alignment + 0.1*expansion)
	}

	// Range: ADX below its floor AND narrow bands AND flat ATR.
	if adxOK && bwOK && atrSlopeOK {
		lowADX := deficit(adx, s.th.RangeADX)
		narrow := deficit(bandWidth, s.th.RangeBandWidth)
		flat := deficit(math.Abs(atrSlope), s.th.FlatATRSlope)
		scores.Range = clamp01(lowADX * narrow * flat)
	}

	// Volatility: ATR level with a bonus for a rising slope.
	if atrOK {
		rising := 0.0
		if atrSlopeOK && atrSlope > 0 {
			rising = 1.0
		}
		scores.Volatility = clamp01(0.8*saturate(atrPct, s.th.HighVolATRPct) + 0.2*rising)
	}

	// Chop: weak ADX combined with DI whipsaw.
	if adxOK && diOK {
		lowADX := deficit(adx, s.th.RangeADX)
		whipsaw := deficit(math.Abs(diPlus-diMinus), s.th.ChopDISpread)
		scores.Chop = clamp01(0.5*lowADX + 0.5*whipsaw)
	}

	scores.Label = s.label(scores, direction)

	s.logger.Debug("regime scored",
		zap.Float64("trend", scores.Trend),
		zap.Float64("range", scores.Range),
		zap.Float64("volatility", scores.Volatility),
		zap.Float64("chop", scores.Chop),
		zap.String("label", string(scores.Label)),
	)

	return scores
}

// label is an ordered decision list; the first matching rule wins.
func (s *Scorer) label(scores core.RegimeScores, direction float64) core.RegimeLabel {
	switch {
	case scores.Volatility >= s.th.HighVolCutoff:
		return core.RegimeHighVol
	case scores.Trend >= s.th.LabelCutoff && direction > 0:
		return core.RegimeTrendUp
	case scores.Trend >= s.th.LabelCutoff && direction < 0:
		return core.RegimeTrendDown
	case scores.Range >= s.th.LabelCutoff:
		return core.RegimeRange
	case scores.Chop >= s.th.LabelCutoff:
		return core.RegimeChoppy
	default:
		return core.RegimeUnknown
	}
}

// saturate maps value/threshold into [0,1]: 0.5 at the threshold, 1 at twice it.
func saturate(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return clamp01(value / (2 * threshold))
}

// deficit maps how far value sits below threshold into [0,1].
func deficit(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return clamp01((threshold - value) / threshold)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
