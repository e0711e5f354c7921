package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/core"
)

// Collector gathers raw candidates from every registered strategy.
type Collector struct {
	registry *Registry
	logger   *zap.Logger
}

// NewCollector creates a collector over the given registry.
func NewCollector(registry *Registry, logger ...*zap.Logger) *Collector {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Collector{registry: registry, logger: l}
}

// Collect invokes every registered strategy, including ones disabled by
// configuration: disabling happens downstream via weighting, never by
// omission, so the arbiter always sees the full decision space. A strategy
// that panics, errors, or returns an invalid candidate is skipped with a
// logged warning; nothing a single strategy does can abort the cycle.
func (c *Collector) Collect(w core.FeatureWindow) []core.SignalCandidate {
	var candidates []core.SignalCandidate

	for _, s := range c.registry.All() {
		cand, err := c.generate(s, w)
		if err != nil {
			c.logger.Warn("strategy generation failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if cand == nil {
			continue
		}

		cand.Strategy = s.Name()
		if !cand.IsValid() {
			c.logger.Warn("strategy produced invalid candidate",
				zap.String("strategy", s.Name()),
				zap.String("direction", string(cand.Direction)),
				zap.Float64("confidence", cand.Confidence),
			)
			continue
		}
		candidates = append(candidates, *cand)
	}

	return candidates
}

// generate calls one strategy, converting a panic into an error.
func (c *Collector) generate(s Strategy, w core.FeatureWindow) (cand *core.SignalCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand = nil
			err = core.WrapError(core.ErrStrategyFailed, recoverErr(r))
		}
	}()
	return s.Generate(w)
}

func recoverErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
