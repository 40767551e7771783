package application

import (
	"testing"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

func status(state monitor.OperationalState, band monitor.Band) Status {
	return Status{
		State:      state,
		Band:       band,
		Value:      97.3,
		ObservedAt: time.Date(2026, 2, 1, 8, 5, 0, 0, time.UTC),
		ChangedAt:  time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDecideDisconnectionIsCritical(t *testing.T) {
	d := NewDecider(true)
	alert := d.Decide("ds18b20", status(monitor.StateNormal, monitor.BandAverage), status(monitor.StateDisconnected, monitor.BandUnknown))
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != monitor.SeverityCritical {
		t.Fatalf("expected critical, got %s", alert.Severity)
	}
	if alert.Previous != monitor.StateNormal || alert.New != monitor.StateDisconnected {
		t.Fatalf("unexpected transition %s -> %s", alert.Previous, alert.New)
	}
}

func TestDecideMispositionIsWarning(t *testing.T) {
	d := NewDecider(true)
	alert := d.Decide("ds18b20", status(monitor.StateStabilizing, monitor.BandUnknown), status(monitor.StateMispositioned, monitor.BandUnknown))
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != monitor.SeverityWarning {
		t.Fatalf("expected warning, got %s", alert.Severity)
	}
}

func TestDecideRecoveryIsInfo(t *testing.T) {
	d := NewDecider(true)
	alert := d.Decide("ds18b20", status(monitor.StateStabilizing, monitor.BandUnknown), status(monitor.StateNormal, monitor.BandAverage))
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != monitor.SeverityInfo {
		t.Fatalf("expected info, got %s", alert.Severity)
	}
}

func TestDecideRecoverySuppressed(t *testing.T) {
	d := NewDecider(false)
	alert := d.Decide("ds18b20", status(monitor.StateStabilizing, monitor.BandUnknown), status(monitor.StateNormal, monitor.BandAverage))
	if alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
}

func TestDecideRecoveryIntoHotBandWarnsDespiteSuppression(t *testing.T) {
	d := NewDecider(false)
	alert := d.Decide("ds18b20", status(monitor.StateStabilizing, monitor.BandUnknown), status(monitor.StateNormal, monitor.BandHot))
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != monitor.SeverityWarning {
		t.Fatalf("expected warning, got %s", alert.Severity)
	}
}

func TestDecideSustainedStateProducesNoAlert(t *testing.T) {
	d := NewDecider(true)
	s := status(monitor.StateDisconnected, monitor.BandUnknown)
	if alert := d.Decide("ds18b20", s, s); alert != nil {
		t.Fatalf("expected no alert for unchanged state, got %+v", alert)
	}
}

func TestDecideHotBandCrossingWhileNormal(t *testing.T) {
	d := NewDecider(true)
	next := status(monitor.StateNormal, monitor.BandHot)
	alert := d.Decide("ds18b20", status(monitor.StateNormal, monitor.BandWarm), next)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != monitor.SeverityWarning {
		t.Fatalf("expected warning, got %s", alert.Severity)
	}
	if !alert.Timestamp.Equal(next.ObservedAt) {
		t.Fatalf("hot crossing must carry the observation time, got %s", alert.Timestamp)
	}
}

func TestDecideIntraNormalBandDriftIsSilent(t *testing.T) {
	d := NewDecider(true)
	if alert := d.Decide("ds18b20", status(monitor.StateNormal, monitor.BandCool), status(monitor.StateNormal, monitor.BandAverage)); alert != nil {
		t.Fatalf("expected no alert for band drift, got %+v", alert)
	}
}

func TestDecideStabilizingEntryIsSilent(t *testing.T) {
	d := NewDecider(true)
	if alert := d.Decide("ds18b20", status(monitor.StateUnknown, monitor.BandUnknown), status(monitor.StateStabilizing, monitor.BandUnknown)); alert != nil {
		t.Fatalf("expected no alert entering stabilizing, got %+v", alert)
	}
}
