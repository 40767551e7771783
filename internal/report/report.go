package report

import (
	"math"
	"sort"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// HourlyStat aggregates calibrated readings within one hour of the day.
type HourlyStat struct {
	Hour    int
	Samples int
	Min     float64
	Max     float64
	Avg     float64
}

// DailySummary holds one day's aggregated readings and alert history for a
// single sensor.
type DailySummary struct {
	SensorID string
	Date     time.Time
	Hours    []HourlyStat
	Alerts   []monitor.Alert
}

// Summarize buckets readings by hour and attaches the day's alerts. Readings
// outside the given day are ignored.
func Summarize(sensorID string, date time.Time, readings []monitor.Reading, alerts []monitor.Alert) DailySummary {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	type bucket struct {
		count int
		min   float64
		max   float64
		sum   float64
	}
	buckets := make(map[int]*bucket)
	for _, r := range readings {
		ts := r.Timestamp.UTC()
		if ts.Before(day) || !ts.Before(next) {
			continue
		}
		hour := ts.Hour()
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{min: math.Inf(1), max: math.Inf(-1)}
			buckets[hour] = b
		}
		b.count++
		b.sum += r.Value
		if r.Value < b.min {
			b.min = r.Value
		}
		if r.Value > b.max {
			b.max = r.Value
		}
	}

	hours := make([]HourlyStat, 0, len(buckets))
	for hour, b := range buckets {
		hours = append(hours, HourlyStat{
			Hour:    hour,
			Samples: b.count,
			Min:     b.min,
			Max:     b.max,
			Avg:     b.sum / float64(b.count),
		})
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Hour < hours[j].Hour })

	kept := make([]monitor.Alert, 0, len(alerts))
	for _, a := range alerts {
		ts := a.Timestamp.UTC()
		if ts.Before(day) || !ts.Before(next) {
			continue
		}
		kept = append(kept, a)
	}

	return DailySummary{SensorID: sensorID, Date: day, Hours: hours, Alerts: kept}
}
