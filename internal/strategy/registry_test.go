package strategy_test

import (
	"fmt"
	"testing"

	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStrategy is a configurable test double for the Strategy interface.
type fakeStrategy struct {
	name      string
	candidate *core.SignalCandidate
	err       error
	panics    bool
}

func (f *fakeStrategy) Name() string        { return f.name }
func (f *fakeStrategy) Description() string { return "fake strategy " + f.name }

func (f *fakeStrategy) Generate(core.FeatureWindow) (*core.SignalCandidate, error) {
	if f.panics {
		panic(fmt.Sprintf("%s blew up", f.name))
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.candidate == nil {
		return nil, nil
	}
	c := *f.candidate
	return &c, nil
}

func longCandidate(confidence float64) *core.SignalCandidate {
	return &core.SignalCandidate{
		Direction:  core.DirectionLong,
		Confidence: confidence,
		StopPrice:  95,
		ATR:        2.5,
	}
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(&fakeStrategy{name: "breakout"}))
	require.NoError(t, r.Register(&fakeStrategy{name: "meanrev"}))
	require.NoError(t, r.Register(&fakeStrategy{name: "momentum"}))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "breakout", all[0].Name())
	assert.Equal(t, "meanrev", all[1].Name())
	assert.Equal(t, "momentum", all[2].Name())

	assert.Equal(t, 0, r.Order("breakout"))
	assert.Equal(t, 2, r.Order("momentum"))
	assert.Equal(t, -1, r.Order("unregistered"))
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(&fakeStrategy{name: "breakout"}))

	err := r.Register(&fakeStrategy{name: "breakout"})
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Get(t *testing.T) {
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(&fakeStrategy{name: "breakout"}))

	s, ok := r.Get("breakout")
	assert.True(t, ok)
	assert.Equal(t, "breakout", s.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}
