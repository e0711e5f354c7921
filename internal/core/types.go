package core

import (
	"math"
	"time"
)

// Direction represents the directional intent of a candidate signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// RegimeLabel classifies the current market condition.
type RegimeLabel string

const (
	RegimeTrendUp   RegimeLabel = "trend_up"
	RegimeTrendDown RegimeLabel = "trend_down"
	RegimeRange     RegimeLabel = "range"
	RegimeHighVol   RegimeLabel = "high_vol"
	RegimeChoppy    RegimeLabel = "choppy"
	RegimeUnknown   RegimeLabel = "unknown"
)

// Feature column names supplied by the indicator pipeline.
const (
	FeatureADX       = "adx"
	FeatureDIPlus    = "di_plus"
	FeatureDIMinus   = "di_minus"
	FeatureEMAFast   = "ema_fast"
	FeatureEMASlow   = "ema_slow"
	FeatureBandWidth = "band_width"
	FeatureATRPct    = "atr_pct"
	FeatureClose     = "close"
)

// FeatureWindow is a fixed-length window of per-bar indicator columns.
// Columns may be missing or contain NaN values; accessors report that
// instead of failing.
type FeatureWindow struct {
	Columns map[string][]float64
	Bars    int
}

// Column returns the named column, or false if absent or empty.
func (w FeatureWindow) Column(name string) ([]float64, bool) {
	col, ok := w.Columns[name]
	if !ok || len(col) == 0 {
		return nil, false
	}
	return col, true
}

// Last returns the most recent non-NaN value of the named column.
func (w FeatureWindow) Last(name string) (float64, bool) {
	col, ok := w.Column(name)
	if !ok {
		return 0, false
	}
	for i := len(col) - 1; i >= 0; i-- {
		if !math.IsNaN(col[i]) {
			return col[i], true
		}
	}
	return 0, false
}

// Slope returns the per-bar change of the named column over lookback bars.
func (w FeatureWindow) Slope(name string, lookback int) (float64, bool) {
	col, ok := w.Column(name)
	if !ok || lookback <= 0 || len(col) <= lookback {
		return 0, false
	}
	last := col[len(col)-1]
	prev := col[len(col)-1-lookback]
	if math.IsNaN(last) || math.IsNaN(prev) {
		return 0, false
	}
	return (last - prev) / float64(lookback), true
}

// RegimeScores holds the four continuous regime scores and the derived label.
// Values are immutable once computed.
type RegimeScores struct {
	Trend      float64     `json:"trend"`
	Range      float64     `json:"range"`
	Volatility float64     `json:"volatility"`
	Chop       float64     `json:"chop"`
	Label      RegimeLabel `json:"label"`
	Reasons    []string    `json:"reasons,omitempty"`
}

// MarketQuality is a snapshot of market microstructure health used by the
// hygiene filter.
type MarketQuality struct {
	SpreadPct   float64       `json:"spread_pct"`
	ATRPct      float64       `json:"atr_pct"`
	DataAnomaly bool          `json:"data_anomaly"`
	BookValid   bool          `json:"book_valid"`
	BookAge     time.Duration `json:"book_age"`
}

// SignalCandidate is a proposed trade from one strategy, before arbitration.
type SignalCandidate struct {
	Strategy    string    `json:"strategy"`
	Direction   Direction `json:"direction"`
	Confidence  float64   `json:"confidence"`
	StopPrice   float64   `json:"stop_price"`
	TargetPrice float64   `json:"target_price"`
	ATR         float64   `json:"atr"`
	GeneratedAt time.Time `json:"generated_at"`
}

// IsValid checks that the candidate has required fields in range.
func (c SignalCandidate) IsValid() bool {
	if c.Strategy == "" {
		return false
	}
	switch c.Direction {
	case DirectionLong, DirectionShort:
		if c.StopPrice <= 0 {
			return false
		}
	case DirectionFlat:
	default:
		return false
	}
	return c.Confidence >= 0 && c.Confidence <= 1 && !math.IsNaN(c.Confidence)
}

// RejectReason identifies why a candidate was removed from arbitration.
type RejectReason string

const (
	RejectInvalid    RejectReason = "invalid_candidate"
	RejectSpread     RejectReason = "spread_too_wide"
	RejectATR        RejectReason = "atr_above_max"
	RejectAnomaly    RejectReason = "data_anomaly"
	RejectStaleBook  RejectReason = "stale_order_book"
	RejectConfluence RejectReason = "confluence_veto"
	RejectZeroScore  RejectReason = "zero_score"
)

// ScoredCandidate is a SignalCandidate after the scoring pipeline has run.
type ScoredCandidate struct {
	SignalCandidate

	ScaledConfidence     float64        `json:"scaled_confidence"`
	StrategyWeight       float64        `json:"strategy_weight"`
	ConfluenceMultiplier float64        `json:"confluence_multiplier"`
	FinalScore           float64        `json:"final_score"`
	Rejected             bool           `json:"rejected"`
	RejectReason         RejectReason   `json:"reject_reason,omitempty"`
	AllReasons           []RejectReason `json:"all_reasons,omitempty"`
	Selected             bool           `json:"selected"`
}

// Decision is the immutable outcome of one decision cycle. It carries every
// candidate, accepted or not, so the arbitration is fully auditable.
type Decision struct {
	ID              string               `json:"id"`
	Symbol          string               `json:"symbol"`
	At              time.Time            `json:"at"`
	Regime          RegimeScores         `json:"regime"`
	Candidates      []ScoredCandidate    `json:"candidates"`
	SelectedIndex   int                  `json:"selected_index"` // -1 when nothing selected
	RejectionCounts map[RejectReason]int `json:"rejection_counts,omitempty"`
	BreakerState    string               `json:"breaker_state"`
	Halted          bool                 `json:"halted"`
	HaltReason      string               `json:"halt_reason,omitempty"`
}

// Selected returns the selected candidate, or nil when none survived.
func (d Decision) Selected() *ScoredCandidate {
	if d.SelectedIndex < 0 || d.SelectedIndex >= len(d.Candidates) {
		return nil
	}
	return &d.Candidates[d.SelectedIndex]
}
