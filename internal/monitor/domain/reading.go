package monitor

import "time"

// Reading is a single raw sensor sample. Immutable once produced.
type Reading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// IsZero reports whether the reading carries no sample.
func (r Reading) IsZero() bool {
	return r.Timestamp.IsZero()
}

// Age returns the sample age relative to now.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}
