package notifier_test

import (
	"errors"
	"testing"
	"time"

	"github.com/helmtrade/helm/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name  string
	sent  []notifier.Alert
	fails bool
}

func (f *fakeNotifier) Name() string               { return f.name }
func (f *fakeNotifier) Init(notifier.Config) error { return nil }

func (f *fakeNotifier) SendBatch(a []notifier.Alert) error {
	for _, alert := range a {
		if err := f.Send(alert); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNotifier) Send(a notifier.Alert) error {
	if f.fails {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, a)
	return nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := notifier.NewRegistry()

	require.NoError(t, r.Register(&fakeNotifier{name: "ops"}))
	assert.Error(t, r.Register(&fakeNotifier{name: "ops"}), "duplicate names rejected")

	n, err := r.Get("ops")
	require.NoError(t, err)
	assert.Equal(t, "ops", n.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := notifier.NewRegistry()
	healthy := &fakeNotifier{name: "healthy"}
	broken := &fakeNotifier{name: "broken", fails: true}
	require.NoError(t, r.Register(healthy))
	require.NoError(t, r.Register(broken))

	alert := notifier.BreakerAlert("KILL_SWITCH", "daily loss breach", time.Now())
	errs := r.NotifyAll(alert)

	require.Len(t, errs, 1)
	assert.Contains(t, errs, "broken")
	require.Len(t, healthy.sent, 1)
	assert.Equal(t, notifier.SeverityCritical, healthy.sent[0].Severity)
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := notifier.NewRegistry()
	require.NoError(t, r.Register(&fakeNotifier{name: "zeta"}))
	require.NoError(t, r.Register(&fakeNotifier{name: "alpha"}))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestBreakerAlert_Severity(t *testing.T) {
	now := time.Now()

	critical := notifier.BreakerAlert("KILL_SWITCH", "loss streak", now)
	assert.Equal(t, notifier.SeverityCritical, critical.Severity)

	warning := notifier.BreakerAlert("VOLATILITY_HALT", "atr spike", now)
	assert.Equal(t, notifier.SeverityWarning, warning.Severity)
	assert.Equal(t, "breaker_transition", warning.Kind)
}

func TestLossStreakAlert(t *testing.T) {
	alert := notifier.LossStreakAlert(3, time.Now())

	assert.Equal(t, notifier.SeverityWarning, alert.Severity)
	assert.Equal(t, "loss_streak", alert.Kind)
	assert.Contains(t, alert.Title, "3 losses")
}
