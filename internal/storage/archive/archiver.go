// internal/storage/archive/archiver.go
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/helmtrade/helm/internal/core"
)

// Archiver writes finished decisions to a storage backend as JSON, one
// object per decision under decisions/<symbol>/<date>/<id>.json. It
// satisfies the engine's decision sink interface.
type Archiver struct {
	storage Storage
	logger  *zap.Logger
}

// NewArchiver creates an archiver on top of a storage backend.
func NewArchiver(storage Storage, logger ...*zap.Logger) *Archiver {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Archiver{storage: storage, logger: l}
}

// Record archives one decision.
func (a *Archiver) Record(ctx context.Context, d core.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling decision %s: %w", d.ID, err)
	}

	path := DecisionPath(d)
	if err := a.storage.Write(ctx, path, data); err != nil {
		return fmt.Errorf("archiving decision %s: %w", d.ID, err)
	}

	a.logger.Debug("decision archived",
		zap.String("decision_id", d.ID),
		zap.String("path", path),
	)
	return nil
}

// Load reads one archived decision back.
func (a *Archiver) Load(ctx context.Context, path string) (*core.Decision, error) {
	data, err := a.storage.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	var d core.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling archived decision at %s: %w", path, err)
	}
	return &d, nil
}

// ListSymbol returns the archive paths for one symbol.
func (a *Archiver) ListSymbol(ctx context.Context, symbol string) ([]string, error) {
	return a.storage.List(ctx, fmt.Sprintf("decisions/%s", symbol))
}

// DecisionPath is the archive key for a decision.
func DecisionPath(d core.Decision) string {
	return fmt.Sprintf("decisions/%s/%s/%s.json", d.Symbol, d.At.UTC().Format("2006-01-02"), d.ID)
}
