package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/metrics"
	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
	"github.com/umweltmonitoring/sensebox-monitor/internal/opensense"
)

// Source is the slice of the remote client the pipeline needs.
type Source interface {
	ListSensors(ctx context.Context, boxID string) ([]opensense.SensorRef, error)
	FetchMeasurements(ctx context.Context, boxID, sensorTitle string, from, to time.Time) ([]opensense.RawRow, error)
}

// Store is the slice of the store gateway the pipeline needs.
type Store interface {
	LastMeasurementAt(ctx context.Context, sensorID string) (*time.Time, error)
	InsertMeasurements(ctx context.Context, sensorID string, rows []models.SeriesPoint) (int64, error)
	RecomputeLastMeasurementRollup(ctx context.Context) error
}

// Stats summarizes one pipeline run for logging.
type Stats struct {
	Sensors  int
	Failed   int
	Inserted int64
}

// Pipeline performs one incremental synchronization pass: per-sensor cursor
// resolution, windowed fetch, normalization, idempotent insert, rollup.
type Pipeline struct {
	source Source
	store  Store
	boxID  string
	epoch  time.Time
	loc    *time.Location
	now    func() time.Time
}

// New creates an ingestion pipeline. epoch is the beginning-of-history
// fallback used for sensors that have no stored measurements yet.
func New(source Source, store Store, boxID string, epoch time.Time, loc *time.Location) *Pipeline {
	return &Pipeline{
		source: source,
		store:  store,
		boxID:  boxID,
		epoch:  epoch,
		loc:    loc,
		now:    time.Now,
	}
}

// Run executes one ingestion cycle. Per-sensor fetch failures are logged and
// isolated; store failures abort the cycle so the next tick retries from the
// same cursors. The last-measurement rollup is recomputed after every cycle.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	stats := Stats{}
	windowEnd := p.now().UTC()

	sensors, err := p.source.ListSensors(ctx, p.boxID)
	if err != nil {
		return stats, fmt.Errorf("list sensors: %w", err)
	}
	stats.Sensors = len(sensors)

	for _, sensor := range sensors {
		cursor, err := p.store.LastMeasurementAt(ctx, sensor.ID)
		if err != nil {
			return stats, fmt.Errorf("cursor for %s: %w", sensor.ID, err)
		}
		windowStart := p.resumeFrom(cursor)

		rows, err := p.source.FetchMeasurements(ctx, p.boxID, sensor.Title, windowStart, windowEnd)
		if err != nil {
			log.Printf("ingest: fetch failed for sensor %s (%s): %v", sensor.ID, sensor.Title, err)
			stats.Failed++
			metrics.IngestSensorFailures.Inc()
			continue
		}
		if len(rows) == 0 {
			continue
		}

		points := Normalize(rows, p.loc)
		if len(points) == 0 {
			continue
		}

		inserted, err := p.store.InsertMeasurements(ctx, sensor.ID, points)
		if err != nil {
			return stats, fmt.Errorf("insert for %s: %w", sensor.ID, err)
		}
		stats.Inserted += inserted
	}

	if err := p.store.RecomputeLastMeasurementRollup(ctx); err != nil {
		return stats, fmt.Errorf("recompute rollup: %w", err)
	}

	metrics.IngestRowsInserted.Add(float64(stats.Inserted))
	return stats, nil
}

// resumeFrom converts a stored cursor into the fetch window start. Stored
// timestamps are zone-naive wall times in the deployment zone, so they are
// re-anchored in loc before the UTC window bound is derived. A nil cursor
// falls back to the configured beginning of history.
func (p *Pipeline) resumeFrom(cursor *time.Time) time.Time {
	if cursor == nil {
		return p.epoch
	}
	c := *cursor
	return time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), p.loc).UTC()
}
