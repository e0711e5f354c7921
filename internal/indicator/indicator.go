// Package indicator derives the feature columns the decision pipeline
// consumes from raw price series.
package indicator

import (
	"math"

	"github.com/helmtrade/helm/internal/core"
)

// SMA calculates a rolling Simple Moving Average.
// Returns a slice of length len(prices) - period + 1.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// EMA calculates an Exponential Moving Average seeded with the SMA of the
// first period. Returns a slice of length len(prices) - period + 1.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

// emaSeries is a full-length EMA seeded from the first close, used for
// column derivation where every bar needs a value.
func emaSeries(closes []float64, alpha float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	ema := closes[0]
	for i, c := range closes {
		ema = ema*(1-alpha) + c*alpha
		out[i] = ema
	}
	return out
}

// Smoothing factors for the fast and slow trend averages.
const (
	fastAlpha = 0.4
	slowAlpha = 0.1
)

// FeaturesFromCloses derives a full feature window from a close series:
// trend averages, an ATR percentage proxy from absolute returns, a band
// width proxy from the average spread, and directional movement columns.
func FeaturesFromCloses(closes []float64) core.FeatureWindow {
	n := len(closes)
	emaFast := emaSeries(closes, fastAlpha)
	emaSlow := emaSeries(closes, slowAlpha)
	atrPct := make([]float64, n)
	bandWidth := make([]float64, n)
	adx := make([]float64, n)
	diPlus := make([]float64, n)
	diMinus := make([]float64, n)

	for i, c := range closes {
		ret := 0.0
		if i > 0 {
			ret = math.Abs(c-closes[i-1]) / closes[i-1]
		}
		atrPct[i] = ret * 100
		bandWidth[i] = math.Abs(emaFast[i]-emaSlow[i]) / emaSlow[i] * 4

		up, down := 0.0, 0.0
		if i > 0 && c > closes[i-1] {
			up = 1
		} else if i > 0 {
			down = 1
		}
		diPlus[i] = 15 + up*20
		diMinus[i] = 15 + down*20
		adx[i] = math.Min(50, math.Abs(emaFast[i]-emaSlow[i])/emaSlow[i]*2500)
	}

	return core.FeatureWindow{
		Bars: n,
		Columns: map[string][]float64{
			core.FeatureClose:     closes,
			core.FeatureEMAFast:   emaFast,
			core.FeatureEMASlow:   emaSlow,
			core.FeatureATRPct:    atrPct,
			core.FeatureBandWidth: bandWidth,
			core.FeatureADX:       adx,
			core.FeatureDIPlus:    diPlus,
			core.FeatureDIMinus:   diMinus,
		},
	}
}
