package notifier

import "time"

// Severity grades an operator alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an operator-facing event, raised for circuit breaker transitions
// and enforcement actions.
type Alert struct {
	Severity Severity  `json:"severity"`
	Kind     string    `json:"kind"`
	Symbol   string    `json:"symbol,omitempty"`
	Title    string    `json:"title"`
	Body     string    `json:"body,omitempty"`
	At       time.Time `json:"at"`
}

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for operator alerting
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single alert
	Send(alert Alert) error

	// SendBatch delivers multiple alerts in one call
	SendBatch(alerts []Alert) error
}
