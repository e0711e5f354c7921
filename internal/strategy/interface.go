package strategy

import (
	"github.com/helmtrade/helm/internal/core"
)

// Strategy defines the interface for candidate signal producers.
// Generate must be a pure function of the feature window: no I/O, no
// cross-call state the caller can observe. Returning (nil, nil) means the
// strategy has no candidate this cycle.
type Strategy interface {
	Name() string
	Description() string
	Generate(w core.FeatureWindow) (*core.SignalCandidate, error)
}
