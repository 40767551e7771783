package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// AlertRepository persists and lists produced alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs an AlertRepository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores one alert.
func (r *AlertRepository) Insert(ctx context.Context, alert monitor.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repository: nil db")
	}
	if alert.SensorID == "" {
		return errors.New("alert repository: empty sensor id")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alert_log (sensor_id, previous_state, new_state, band, value, severity, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		alert.SensorID,
		string(alert.Previous),
		string(alert.New),
		string(alert.Band),
		alert.Value,
		string(alert.Severity),
		alert.Timestamp.UTC(),
	)
	return err
}

// ListRange returns alerts between from and to in ascending time order.
func (r *AlertRepository) ListRange(ctx context.Context, from, to time.Time) ([]monitor.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repository: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sensor_id, previous_state, new_state, band, value, severity, ts
FROM alert_log
WHERE ts >= $1 AND ts < $2
ORDER BY ts ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []monitor.Alert
	for rows.Next() {
		var alert monitor.Alert
		var previous, next, band, severity string
		var ts time.Time
		if err := rows.Scan(&alert.SensorID, &previous, &next, &band, &alert.Value, &severity, &ts); err != nil {
			return nil, err
		}
		alert.Previous = monitor.OperationalState(previous)
		alert.New = monitor.OperationalState(next)
		alert.Band = monitor.Band(band)
		alert.Severity = monitor.Severity(severity)
		alert.Timestamp = ts.UTC()
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}
