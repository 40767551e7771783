package application

import (
	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// Decider turns state transitions into alerts. It is called exactly once per
// observation, so a sustained transition produces exactly one alert no
// matter how many polls observe the same state afterwards.
type Decider struct {
	notifyRecovery bool
}

// NewDecider constructs a Decider. When notifyRecovery is false the
// informational alert on recovery to normal is suppressed.
func NewDecider(notifyRecovery bool) *Decider {
	return &Decider{notifyRecovery: notifyRecovery}
}

// Decide returns the alert warranted by the transition from previous to
// next, or nil when the transition is not alert-worthy.
func (d *Decider) Decide(sensorID string, previous, next Status) *monitor.Alert {
	if d == nil || sensorID == "" {
		return nil
	}
	if previous.State == next.State && previous.Band == next.Band {
		return nil
	}

	alert := monitor.Alert{
		SensorID:  sensorID,
		Previous:  previous.State,
		New:       next.State,
		Band:      next.Band,
		Value:     next.Value,
		Timestamp: next.ChangedAt,
	}

	switch {
	case next.State == monitor.StateDisconnected && previous.State != monitor.StateDisconnected:
		alert.Severity = monitor.SeverityCritical
	case next.State == monitor.StateMispositioned && previous.State != monitor.StateMispositioned:
		alert.Severity = monitor.SeverityWarning
	case next.State == monitor.StateNormal && previous.State != monitor.StateNormal:
		// Recovering straight into the hot band is a hot-band alert, not
		// a suppressible recovery note.
		if next.Band == monitor.BandHot {
			alert.Severity = monitor.SeverityWarning
			break
		}
		if !d.notifyRecovery {
			return nil
		}
		alert.Severity = monitor.SeverityInfo
	case next.State == monitor.StateNormal && previous.State == monitor.StateNormal &&
		next.Band == monitor.BandHot && previous.Band != monitor.BandHot:
		// Intra-normal band drift is not alert-worthy; crossing into hot is.
		alert.Severity = monitor.SeverityWarning
		alert.Timestamp = next.ObservedAt
	default:
		return nil
	}
	return &alert
}
