package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "tempmon_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollCycles   prometheus.Counter
	sourceErrors prometheus.Counter

	sensorState *prometheus.GaugeVec
	sensorValue *prometheus.GaugeVec

	alertsTotal   *prometheus.CounterVec
	dispatchTotal *prometheus.CounterVec
	dispatchDelay prometheus.Histogram

	reportExports *prometheus.CounterVec
)

var stateCodes = map[string]float64{
	"unknown":       0,
	"disconnected":  1,
	"mispositioned": 2,
	"stabilizing":   3,
	"normal":        4,
}

// Init registers monitoring metrics. Safe to call once from main; helpers
// no-op when Init was never called.
func Init() {
	registerOnce.Do(func() {
		pollCycles = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total completed polling cycles",
			},
		)
		sourceErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_errors_total",
				Help: "Total sample source failures",
			},
		)

		sensorState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensor_state",
				Help: "Operational state code per sensor (0 unknown, 1 disconnected, 2 mispositioned, 3 stabilizing, 4 normal)",
			},
			[]string{"sensor"},
		)
		sensorValue = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensor_calibrated_value",
				Help: "Latest calibrated reading per sensor",
			},
			[]string{"sensor"},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alerts produced by severity",
			},
			[]string{"severity"},
		)
		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_dispatch_total",
				Help: "Total alert dispatch attempts by result",
			},
			[]string{"result"},
		)
		dispatchDelay = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alert_dispatch_seconds",
				Help:    "Alert delivery latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		reportExports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			pollCycles,
			sourceErrors,
			sensorState,
			sensorValue,
			alertsTotal,
			dispatchTotal,
			dispatchDelay,
			reportExports,
		)
	})
}

// RecordPollCycle counts a completed polling cycle.
func RecordPollCycle() {
	if pollCycles != nil {
		pollCycles.Inc()
	}
}

// RecordSourceError counts a failed sample source call.
func RecordSourceError() {
	if sourceErrors != nil {
		sourceErrors.Inc()
	}
}

// SetSensorState publishes the current operational state of a sensor.
func SetSensorState(sensorID, state string) {
	if sensorState != nil {
		sensorState.WithLabelValues(sensorID).Set(stateCodes[state])
	}
}

// SetSensorValue publishes the latest calibrated reading of a sensor.
func SetSensorValue(sensorID string, value float64) {
	if sensorValue != nil {
		sensorValue.WithLabelValues(sensorID).Set(value)
	}
}

// RecordAlert counts a produced alert.
func RecordAlert(severity string) {
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(severity).Inc()
	}
}

// RecordDispatch counts an alert delivery attempt.
func RecordDispatch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if dispatchTotal != nil {
		dispatchTotal.WithLabelValues(result).Inc()
	}
}

// ObserveDispatch records delivery latency and result.
func ObserveDispatch(result string, duration time.Duration) {
	RecordDispatch(result)
	if dispatchDelay != nil {
		dispatchDelay.Observe(duration.Seconds())
	}
}

// RecordReportExport counts a report export.
func RecordReportExport(format, result string) {
	if result == "" {
		result = resultSuccess
	}
	if reportExports != nil {
		reportExports.WithLabelValues(format, result).Inc()
	}
}
