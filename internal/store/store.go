package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

// ErrDataAccess marks store connection or query failures. Callers abort the
// current cycle on it and retry on the next scheduled tick.
var ErrDataAccess = errors.New("data access error")

func dataAccessErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDataAccess, op, err)
}

// Store wraps typed database access for box, sensor and measurement rows.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, dataAccessErr("connect", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const upsertBoxSQL = `
INSERT INTO sensebox (sensebox_id, name, created_at, description, exposure, last_measurement_at, latitude, longitude, altitude)
VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8)
ON CONFLICT (sensebox_id) DO NOTHING`

// UpsertBox inserts the box row, ignoring it when the box already exists.
// last_measurement_at is never written here; only the rollup touches it.
func (s *Store) UpsertBox(ctx context.Context, box models.Box) error {
	_, err := s.pool.Exec(ctx, upsertBoxSQL,
		box.ID, box.Name, box.CreatedAt, box.Description, box.Exposure,
		box.Latitude, box.Longitude, box.Altitude)
	if err != nil {
		return dataAccessErr("upsert box", err)
	}
	return nil
}

const upsertSensorSQL = `
INSERT INTO sensor (sensor_id, sensebox_id, title, unit, sensor_type, icon)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (sensor_id) DO NOTHING`

// UpsertSensors inserts sensor rows for a box, ignoring already known ones.
func (s *Store) UpsertSensors(ctx context.Context, boxID string, sensors []models.Sensor) error {
	if len(sensors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sen := range sensors {
		batch.Queue(upsertSensorSQL, sen.ID, boxID, sen.Title, sen.Unit, sen.SensorType, sen.Icon)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range sensors {
		if _, err := res.Exec(); err != nil {
			return dataAccessErr("upsert sensors", err)
		}
	}
	return nil
}

const insertMeasurementSQL = `
INSERT INTO measurement (sensor_id, created_at, value)
VALUES ($1, $2, $3)
ON CONFLICT (sensor_id, created_at) DO NOTHING`

// InsertMeasurements writes measurement rows for one sensor. Rows already
// present (same sensor and timestamp) are ignored, so re-submitting an
// overlapping window is safe. Returns the number of rows actually inserted.
func (s *Store) InsertMeasurements(ctx context.Context, sensorID string, rows []models.SeriesPoint) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertMeasurementSQL, sensorID, row.TS, row.Value)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	var inserted int64
	for range rows {
		tag, err := res.Exec()
		if err != nil {
			return inserted, dataAccessErr("insert measurements", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

const lastMeasurementSQL = `
SELECT MAX(created_at) FROM measurement WHERE sensor_id = $1`

// LastMeasurementAt returns the newest stored timestamp for a sensor, or nil
// when the sensor has no measurements yet.
func (s *Store) LastMeasurementAt(ctx context.Context, sensorID string) (*time.Time, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, lastMeasurementSQL, sensorID).Scan(&ts); err != nil {
		return nil, dataAccessErr("last measurement", err)
	}
	return ts, nil
}

const rollupSQL = `
UPDATE sensebox b
SET last_measurement_at = (
	SELECT MAX(m.created_at)
	FROM measurement m
	JOIN sensor s ON s.sensor_id = m.sensor_id
	WHERE s.sensebox_id = b.sensebox_id
)`

// RecomputeLastMeasurementRollup sets each box's last_measurement_at to the
// max timestamp across its sensors' measurements. Runs as one statement so a
// partial failure never leaves the rollup ahead of the raw data.
func (s *Store) RecomputeLastMeasurementRollup(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, rollupSQL); err != nil {
		return dataAccessErr("recompute rollup", err)
	}
	return nil
}

const getBoxSQL = `
SELECT sensebox_id, name, created_at, description, exposure, last_measurement_at, latitude, longitude, altitude
FROM sensebox
LIMIT 1`

// GetBox returns the box row, or nil when bootstrap has not run yet.
func (s *Store) GetBox(ctx context.Context) (*models.Box, error) {
	var box models.Box
	err := s.pool.QueryRow(ctx, getBoxSQL).Scan(
		&box.ID, &box.Name, &box.CreatedAt, &box.Description, &box.Exposure,
		&box.LastMeasurementAt, &box.Latitude, &box.Longitude, &box.Altitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dataAccessErr("get box", err)
	}
	return &box, nil
}

const listSensorsSQL = `
SELECT sensor_id, sensebox_id, title, unit, sensor_type, icon
FROM sensor
ORDER BY sensor_id`

// ListSensors returns all stored sensor metadata.
func (s *Store) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	rows, err := s.pool.Query(ctx, listSensorsSQL)
	if err != nil {
		return nil, dataAccessErr("list sensors", err)
	}
	defer rows.Close()

	sensors := make([]models.Sensor, 0)
	for rows.Next() {
		var sen models.Sensor
		if err := rows.Scan(&sen.ID, &sen.BoxID, &sen.Title, &sen.Unit, &sen.SensorType, &sen.Icon); err != nil {
			return nil, dataAccessErr("scan sensor", err)
		}
		sensors = append(sensors, sen)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessErr("list sensors", err)
	}
	return sensors, nil
}
