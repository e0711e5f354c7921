// Package meta arbitrates candidate signals into a single trading decision.
package meta

// Scaling is a per-strategy linear transform applied to raw confidence.
type Scaling struct {
	Multiplier float64
	Offset     float64
}

// NeutralScaling leaves raw confidence untouched.
func NeutralScaling() Scaling {
	return Scaling{Multiplier: 1, Offset: 0}
}

// Scaler normalizes raw strategy confidence into a comparable range.
type Scaler struct {
	params map[string]Scaling
}

// NewScaler creates a scaler from static per-strategy parameters.
func NewScaler(params map[string]Scaling) *Scaler {
	if params == nil {
		params = make(map[string]Scaling)
	}
	return &Scaler{params: params}
}

// Scale applies clamp(multiplier*raw + offset, 0, 1).
func Scale(raw float64, s Scaling) float64 {
	v := s.Multiplier*raw + s.Offset
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScaleFor scales raw confidence using the strategy's configured transform.
// An unconfigured strategy gets the neutral transform.
func (s *Scaler) ScaleFor(strategyID string, raw float64) float64 {
	params, ok := s.params[strategyID]
	if !ok {
		params = NeutralScaling()
	}
	return Scale(raw, params)
}
