package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tyjch/influx-monitor/internal/monitor/application"
	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

func newTracker(t *testing.T) *application.Tracker {
	t.Helper()
	tracker, err := application.NewTracker(monitor.DefaultThresholds(), 5*time.Minute)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tracker
}

func TestStatusHandlerReturnsSnapshot(t *testing.T) {
	tracker := newTracker(t)
	if _, err := tracker.Observe("ds18b20", monitor.Reading{Value: 97.3, Timestamp: time.Now().UTC()}, nil); err != nil {
		t.Fatalf("observe: %v", err)
	}

	handler, err := NewStatusHandler(tracker)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var snapshot map[string]application.Status
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	status, ok := snapshot["ds18b20"]
	if !ok {
		t.Fatal("expected ds18b20 in snapshot")
	}
	if status.State != monitor.StateStabilizing {
		t.Fatalf("expected stabilizing, got %s", status.State)
	}
}

func TestStatusHandlerRejectsPost(t *testing.T) {
	handler, err := NewStatusHandler(newTracker(t))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

type stubLister struct {
	alerts []monitor.Alert
	err    error
}

func (s stubLister) ListRange(_ context.Context, _, _ time.Time) ([]monitor.Alert, error) {
	return s.alerts, s.err
}

func TestAlertsHandlerListsRange(t *testing.T) {
	alerts := []monitor.Alert{
		{
			SensorID:  "ds18b20",
			Previous:  monitor.StateNormal,
			New:       monitor.StateDisconnected,
			Severity:  monitor.SeverityCritical,
			Timestamp: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			SensorID:  "other",
			Previous:  monitor.StateStabilizing,
			New:       monitor.StateNormal,
			Severity:  monitor.SeverityInfo,
			Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	handler, err := NewAlertsHandler(stubLister{alerts: alerts})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?from=2026-02-01T00:00:00Z&to=2026-02-02T00:00:00Z", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var decoded []monitor.Alert
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(decoded))
	}
}

func TestAlertsHandlerFiltersBySensor(t *testing.T) {
	alerts := []monitor.Alert{
		{SensorID: "ds18b20", New: monitor.StateDisconnected, Timestamp: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)},
		{SensorID: "other", New: monitor.StateNormal, Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)},
	}
	handler, err := NewAlertsHandler(stubLister{alerts: alerts})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?from=2026-02-01T00:00:00Z&to=2026-02-02T00:00:00Z&sensor_id=ds18b20", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var decoded []monitor.Alert
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0].SensorID != "ds18b20" {
		t.Fatalf("unexpected alerts %+v", decoded)
	}
}

func TestAlertsHandlerRequiresRange(t *testing.T) {
	handler, err := NewAlertsHandler(stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

type stubRanger struct {
	readings []monitor.Reading
	err      error
}

func (s stubRanger) Range(_ context.Context, _ string, _, _ time.Time) ([]monitor.Reading, error) {
	return s.readings, s.err
}

func TestReportHandlerExportsXLSX(t *testing.T) {
	readings := []monitor.Reading{
		{Value: 97.3, Timestamp: time.Date(2026, 2, 1, 8, 10, 0, 0, time.UTC)},
		{Value: 97.5, Timestamp: time.Date(2026, 2, 1, 8, 40, 0, 0, time.UTC)},
	}
	handler, err := NewReportHandler(stubRanger{readings: readings}, stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily?sensor_id=ds18b20&date=2026-02-01&format=xlsx", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", got)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("expected non-empty workbook")
	}
}

func TestReportHandlerExportsPDF(t *testing.T) {
	handler, err := NewReportHandler(stubRanger{}, stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily?sensor_id=ds18b20&date=2026-02-01&format=pdf", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestReportHandlerRejectsBadInput(t *testing.T) {
	handler, err := NewReportHandler(stubRanger{}, stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	cases := []string{
		"/api/v1/reports/daily?date=2026-02-01",
		"/api/v1/reports/daily?sensor_id=ds18b20",
		"/api/v1/reports/daily?sensor_id=ds18b20&date=yesterday",
		"/api/v1/reports/daily?sensor_id=ds18b20&date=2026-02-01&format=csv",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, resp.Code)
		}
	}
}

func TestReportHandlerSourceError(t *testing.T) {
	handler, err := NewReportHandler(stubRanger{err: errors.New("db down")}, stubLister{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily?sensor_id=ds18b20&date=2026-02-01", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestSSEBrokerBroadcasts(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	alert := monitor.Alert{
		SensorID: "ds18b20",
		New:      monitor.StateDisconnected,
		Severity: monitor.SeverityCritical,
	}
	broker.Notify(context.Background(), alert)

	select {
	case payload := <-ch:
		var decoded monitor.Alert
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.SensorID != "ds18b20" {
			t.Fatalf("unexpected alert %+v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast payload")
	}
}

func TestSSEBrokerReplaysLatestAlertToNewSubscriber(t *testing.T) {
	broker := NewSSEBroker()
	broker.Notify(context.Background(), monitor.Alert{SensorID: "ds18b20", New: monitor.StateMispositioned})
	broker.Notify(context.Background(), monitor.Alert{SensorID: "ds18b20", New: monitor.StateDisconnected})
	broker.Notify(context.Background(), monitor.Alert{SensorID: "body-2", New: monitor.StateMispositioned})

	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	states := map[string]monitor.OperationalState{}
	for i := 0; i < 2; i++ {
		select {
		case payload := <-ch:
			var decoded monitor.Alert
			if err := json.Unmarshal(payload, &decoded); err != nil {
				t.Fatalf("decode: %v", err)
			}
			states[decoded.SensorID] = decoded.New
		case <-time.After(time.Second):
			t.Fatal("expected replayed payload")
		}
	}
	if states["ds18b20"] != monitor.StateDisconnected {
		t.Fatalf("expected latest ds18b20 alert, got %s", states["ds18b20"])
	}
	if states["body-2"] != monitor.StateMispositioned {
		t.Fatalf("expected body-2 alert, got %s", states["body-2"])
	}
}

func TestSSEBrokerUnsubscribeTwiceIsSafe(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	broker.Unsubscribe(ch)
	broker.Unsubscribe(ch)
}

func TestStreamHandlerSendsKeepAlive(t *testing.T) {
	broker := NewSSEBroker()
	handler := NewStreamHandler(broker)
	handler.keepAlive = 20 * time.Millisecond
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	var received string
	for {
		n, err := resp.Body.Read(buf)
		received += string(buf[:n])
		if err != nil || strings.Contains(received, ": keep-alive") {
			break
		}
	}
	if !strings.Contains(received, ": keep-alive") {
		t.Fatalf("expected keep-alive comment, got %q", received)
	}
}

func TestStreamHandlerEmitsEvents(t *testing.T) {
	broker := NewSSEBroker()
	handler := NewStreamHandler(broker)
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	broker.Notify(context.Background(), monitor.Alert{SensorID: "ds18b20", New: monitor.StateDisconnected})

	buf := make([]byte, 4096)
	var received string
	for {
		n, err := resp.Body.Read(buf)
		received += string(buf[:n])
		if err != nil || (len(received) > 0 && containsEvent(received)) {
			break
		}
	}
	if !containsEvent(received) {
		t.Fatalf("expected alert event in stream, got %q", received)
	}
}

func containsEvent(s string) bool {
	return strings.Contains(s, "event: alert") && strings.Contains(s, "ds18b20")
}
