package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// ReadingSource reads sensor samples from the metrics database.
type ReadingSource struct {
	db *sql.DB
}

// NewReadingSource constructs a ReadingSource.
func NewReadingSource(db *sql.DB) *ReadingSource {
	return &ReadingSource{db: db}
}

// Latest returns the most recent reading for a sensor. ok is false when the
// sensor has no readings at all.
func (r *ReadingSource) Latest(ctx context.Context, sensorID string) (monitor.Reading, bool, error) {
	if r == nil || r.db == nil {
		return monitor.Reading{}, false, errors.New("reading source: nil db")
	}
	if sensorID == "" {
		return monitor.Reading{}, false, errors.New("reading source: empty sensor id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT ts, value
FROM sensor_readings
WHERE sensor_id = $1
ORDER BY ts DESC
LIMIT 1`, sensorID)
	var ts time.Time
	var value sql.NullFloat64
	if err := row.Scan(&ts, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.Reading{}, false, nil
		}
		return monitor.Reading{}, false, err
	}
	if !value.Valid {
		return monitor.Reading{}, false, nil
	}
	return monitor.Reading{Value: value.Float64, Timestamp: ts.UTC()}, true, nil
}

// Window returns readings from the trailing lookback period in ascending
// time order.
func (r *ReadingSource) Window(ctx context.Context, sensorID string, lookback time.Duration) ([]monitor.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading source: nil db")
	}
	if sensorID == "" {
		return nil, errors.New("reading source: empty sensor id")
	}
	if lookback <= 0 {
		return nil, errors.New("reading source: lookback must be positive")
	}
	cutoff := time.Now().UTC().Add(-lookback)
	return r.Range(ctx, sensorID, cutoff, time.Now().UTC())
}

// Range returns readings between from and to in ascending time order.
func (r *ReadingSource) Range(ctx context.Context, sensorID string, from, to time.Time) ([]monitor.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading source: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT ts, value
FROM sensor_readings
WHERE sensor_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`, sensorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []monitor.Reading
	for rows.Next() {
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, err
		}
		if !value.Valid {
			continue
		}
		readings = append(readings, monitor.Reading{Value: value.Float64, Timestamp: ts.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}
