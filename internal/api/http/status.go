package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tyjch/influx-monitor/internal/monitor/application"
)

// StatusHandler reports the current operational state of every tracked
// sensor.
type StatusHandler struct {
	tracker *application.Tracker
}

// NewStatusHandler constructs a status handler.
func NewStatusHandler(tracker *application.Tracker) (*StatusHandler, error) {
	if tracker == nil {
		return nil, errors.New("status handler: nil tracker")
	}
	return &StatusHandler{tracker: tracker}, nil
}

// ServeHTTP handles GET /api/v1/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot := h.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}
