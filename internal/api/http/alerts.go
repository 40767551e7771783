package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

const timeLayout = time.RFC3339

// AlertLister reads persisted alerts.
type AlertLister interface {
	ListRange(ctx context.Context, from, to time.Time) ([]monitor.Alert, error)
}

// AlertsHandler lists alert history.
type AlertsHandler struct {
	lister AlertLister
}

// NewAlertsHandler constructs an alerts handler.
func NewAlertsHandler(lister AlertLister) (*AlertsHandler, error) {
	if lister == nil {
		return nil, errors.New("alerts handler: nil lister")
	}
	return &AlertsHandler{lister: lister}, nil
}

// ServeHTTP handles GET /api/v1/alerts?from=&to=&sensor_id=.
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	alerts, err := h.lister.ListRange(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sensorID := r.URL.Query().Get("sensor_id"); sensorID != "" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if a.SensorID == sensorID {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	if alerts == nil {
		alerts = []monitor.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alerts)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
