package models

import (
	"fmt"
	"time"
)

// Box represents one sensebox deployment as stored in the database.
type Box struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	CreatedAt         time.Time  `json:"created_at"`
	Description       *string    `json:"description,omitempty"`
	Exposure          *string    `json:"exposure,omitempty"`
	LastMeasurementAt *time.Time `json:"last_measurement_at,omitempty"`
	Latitude          float64    `json:"lat"`
	Longitude         float64    `json:"lon"`
	Altitude          *float64   `json:"alt,omitempty"`
}

// Sensor represents one measured phenomenon belonging to a box. Sensors are
// created once during bootstrap and never updated afterwards.
type Sensor struct {
	ID         string  `json:"id"`
	BoxID      string  `json:"box_id"`
	Title      string  `json:"title"`
	Unit       string  `json:"unit"`
	SensorType *string `json:"sensor_type,omitempty"`
	Icon       *string `json:"icon,omitempty"`
}

// DisplayKey returns the column label used for a sensor throughout the
// pivoted view, e.g. "Temperature in °C".
func DisplayKey(title, unit string) string {
	return fmt.Sprintf("%s in %s", title, unit)
}

// DisplayKey returns the pivoted-view column label for this sensor.
func (s Sensor) DisplayKey() string {
	return DisplayKey(s.Title, s.Unit)
}

// SeriesPoint is a single (timestamp, value) pair. Used both for raw
// measurements of one sensor and for forecast output.
type SeriesPoint struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// PivotedSeries is the wide view joining all sensors' measurements: one row
// per timestamp, one column per sensor display key. Values is index-aligned
// with Columns; nil marks a gap (no reading for that sensor at that minute).
type PivotedSeries struct {
	Columns []string
	Rows    []PivotedRow
}

// PivotedRow is one timestamp line of the pivoted series.
type PivotedRow struct {
	TS     time.Time
	Values []*float64
}

// ColumnIndex returns the position of a display key in Columns, or -1.
func (p PivotedSeries) ColumnIndex(key string) int {
	for i, c := range p.Columns {
		if c == key {
			return i
		}
	}
	return -1
}

// Column extracts the non-nil points of one pivot column as a series.
func (p PivotedSeries) Column(key string) []SeriesPoint {
	idx := p.ColumnIndex(key)
	if idx < 0 {
		return nil
	}
	points := make([]SeriesPoint, 0, len(p.Rows))
	for _, row := range p.Rows {
		if v := row.Values[idx]; v != nil {
			points = append(points, SeriesPoint{TS: row.TS, Value: *v})
		}
	}
	return points
}
