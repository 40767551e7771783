package monitor

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is produced exactly once per qualifying state transition.
// Immutable after creation.
type Alert struct {
	SensorID  string           `json:"sensor_id"`
	Previous  OperationalState `json:"previous_state"`
	New       OperationalState `json:"new_state"`
	Band      Band             `json:"band,omitempty"`
	Value     float64          `json:"value"`
	Timestamp time.Time        `json:"timestamp"`
	Severity  Severity         `json:"severity"`
}
