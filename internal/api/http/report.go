package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
	"github.com/tyjch/influx-monitor/internal/observability/metrics"
	"github.com/tyjch/influx-monitor/internal/report"
)

// ReadingRanger reads historical readings for a sensor.
type ReadingRanger interface {
	Range(ctx context.Context, sensorID string, from, to time.Time) ([]monitor.Reading, error)
}

// ReportHandler exports a daily temperature report as XLSX or PDF.
type ReportHandler struct {
	readings ReadingRanger
	alerts   AlertLister
}

// NewReportHandler constructs a report handler.
func NewReportHandler(readings ReadingRanger, alerts AlertLister) (*ReportHandler, error) {
	if readings == nil {
		return nil, errors.New("report handler: nil readings")
	}
	if alerts == nil {
		return nil, errors.New("report handler: nil alerts")
	}
	return &ReportHandler{readings: readings, alerts: alerts}, nil
}

// ServeHTTP handles GET /api/v1/reports/daily?sensor_id=&date=&format=.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sensorID := r.URL.Query().Get("sensor_id")
	if sensorID == "" {
		http.Error(w, "sensor_id is required", http.StatusBadRequest)
		return
	}
	dateValue := r.URL.Query().Get("date")
	if dateValue == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", dateValue)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	readings, err := h.readings.Range(r.Context(), sensorID, day, next)
	if err != nil {
		metrics.RecordReportExport(format, "error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	alerts, err := h.alerts.ListRange(r.Context(), day, next)
	if err != nil {
		metrics.RecordReportExport(format, "error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	kept := alerts[:0]
	for _, a := range alerts {
		if a.SensorID == sensorID {
			kept = append(kept, a)
		}
	}

	summary := report.Summarize(sensorID, day, readings, kept)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case "pdf":
		payload, err = report.BuildDailyPDF(summary)
		contentType = "application/pdf"
	default:
		payload, err = report.BuildDailyXLSX(summary)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		metrics.RecordReportExport(format, "error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RecordReportExport(format, "success")
	filename := fmt.Sprintf("report-%s-%s.%s", sensorID, day.Format("2006-01-02"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}
