package notifier

import (
	"fmt"
	"time"
)

// BreakerAlert builds the operator alert for a circuit breaker transition.
// Kill switch transitions are critical, everything else is a warning.
func BreakerAlert(state, reason string, at time.Time) Alert {
	severity := SeverityWarning
	if state == "KILL_SWITCH" {
		severity = SeverityCritical
	}
	return Alert{
		Severity: severity,
		Kind:     "breaker_transition",
		Title:    fmt.Sprintf("circuit breaker entered %s", state),
		Body:     reason,
		At:       at,
	}
}

// LossStreakAlert builds the advisory alert raised when the loss streak
// threshold is reached.
func LossStreakAlert(losses int, at time.Time) Alert {
	return Alert{
		Severity: SeverityWarning,
		Kind:     "loss_streak",
		Title:    fmt.Sprintf("%d losses inside the rolling window", losses),
		At:       at,
	}
}
