package monitor

import (
	"errors"
	"fmt"
	"time"
)

// Thresholds holds the validated temperature and timing configuration for a
// monitored body sensor. Values are loaded once at startup and never mutated.
type Thresholds struct {
	// Band upper bounds in ascending order. Values above WarmMax classify
	// as the hot band, which has no upper bound.
	ColdMax    float64
	CoolMax    float64
	AverageMax float64
	WarmMax    float64

	// CalibrationOffset is added to every raw sample before classification.
	CalibrationOffset float64

	// MinRealistic is the lowest calibrated value accepted as a body
	// temperature. Anything below is unrealistic and feeds the
	// misposition timer.
	MinRealistic float64

	// MispositionAfter is how long the calibrated value may stay below
	// MinRealistic before the sensor is declared mispositioned.
	MispositionAfter time.Duration

	// StabilizationRate is the maximum rate of change (degrees per
	// minute) at which readings are considered steady.
	StabilizationRate float64

	// MinStabilization is the minimum time a sensor spends stabilizing
	// before it may be promoted to normal.
	MinStabilization time.Duration

	// RoomDifferential is the maximum distance from the ambient reading
	// at which the sensor is treated as reading room temperature, i.e.
	// effectively disconnected.
	RoomDifferential float64
}

// DefaultThresholds mirrors the historical defaults (degrees Fahrenheit).
func DefaultThresholds() Thresholds {
	return Thresholds{
		ColdMax:           96.5,
		CoolMax:           97.0,
		AverageMax:        98.0,
		WarmMax:           99.0,
		CalibrationOffset: 0.0,
		MinRealistic:      94.0,
		MispositionAfter:  5 * time.Minute,
		StabilizationRate: 0.1,
		MinStabilization:  60 * time.Second,
		RoomDifferential:  10.0,
	}
}

// Validate checks threshold invariants. A violation is a fatal
// configuration error; it must reject startup, not surface at evaluation.
func (t Thresholds) Validate() error {
	if !(t.ColdMax < t.CoolMax && t.CoolMax < t.AverageMax && t.AverageMax < t.WarmMax) {
		return fmt.Errorf("thresholds: band bounds out of order: cold=%.2f cool=%.2f average=%.2f warm=%.2f",
			t.ColdMax, t.CoolMax, t.AverageMax, t.WarmMax)
	}
	if t.MispositionAfter <= 0 {
		return errors.New("thresholds: misposition window must be positive")
	}
	if t.StabilizationRate <= 0 {
		return errors.New("thresholds: stabilization rate must be positive")
	}
	if t.MinStabilization <= 0 {
		return errors.New("thresholds: stabilization time must be positive")
	}
	if t.RoomDifferential <= 0 {
		return errors.New("thresholds: room differential must be positive")
	}
	return nil
}

// Calibrate applies the additive calibration offset to a raw value.
func (t Thresholds) Calibrate(raw float64) float64 {
	return raw + t.CalibrationOffset
}

// Lookback returns the longest history window any evaluation needs.
// History entries older than this are dropped, never kept.
func (t Thresholds) Lookback() time.Duration {
	if t.MispositionAfter > t.MinStabilization {
		return t.MispositionAfter
	}
	return t.MinStabilization
}
