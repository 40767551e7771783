package monitor

// OperationalState describes what the sensor is doing right now. Exactly one
// state holds per sensor at any instant.
type OperationalState string

const (
	// StateUnknown is the state before the first sample is seen.
	StateUnknown OperationalState = "unknown"

	// StateDisconnected means no fresh reading within the offline
	// threshold, or the sensor is reading room temperature.
	StateDisconnected OperationalState = "disconnected"

	// StateMispositioned means readings are present but have stayed below
	// the realistic minimum for longer than the misposition window.
	StateMispositioned OperationalState = "mispositioned"

	// StateStabilizing means readings are realistic but not yet steady.
	StateStabilizing OperationalState = "stabilizing"

	// StateNormal means readings are realistic and steady; a band applies.
	StateNormal OperationalState = "normal"
)

// Valid reports whether the state is one of the defined values.
func (s OperationalState) Valid() bool {
	switch s {
	case StateUnknown, StateDisconnected, StateMispositioned, StateStabilizing, StateNormal:
		return true
	default:
		return false
	}
}
