package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
	"github.com/umweltmonitoring/sensebox-monitor/internal/opensense"
)

// zonedLayouts cover source timestamps that carry an explicit UTC marker or
// offset. naiveLayouts cover zone-less stamps, which are resolved as wall
// times in the deployment zone.
var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}
	naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}
)

// Normalize converts raw source rows into storable points: timestamps are
// resolved into the deployment zone, floored to the minute, deduplicated per
// minute and sorted ascending. Rows whose timestamp cannot be resolved
// (malformed, or a DST-ambiguous/nonexistent wall time) are dropped from the
// batch; they never fail the whole batch.
func Normalize(rows []opensense.RawRow, loc *time.Location) []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		ts, err := resolveTimestamp(row.CreatedAt, loc)
		if err != nil {
			continue
		}
		points = append(points, models.SeriesPoint{
			TS:    ts.Truncate(time.Minute),
			Value: row.Value,
		})
	}

	sort.Slice(points, func(a, b int) bool {
		return points[a].TS.Before(points[b].TS)
	})

	// Collapse sub-minute jitter: keep the first reading of each minute.
	deduped := points[:0]
	for _, p := range points {
		if len(deduped) > 0 && deduped[len(deduped)-1].TS.Equal(p.TS) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// resolveTimestamp parses a source timestamp and expresses it in loc. Zoned
// stamps convert directly; naive stamps are interpreted as wall times in loc
// and rejected when a DST transition makes them ambiguous or nonexistent.
func resolveTimestamp(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if wall, err := time.Parse(layout, raw); err == nil {
			return resolveWallTime(wall, loc)
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// resolveWallTime maps a zone-less wall-clock reading onto an instant in loc.
// A wall time skipped by a spring-forward transition does not exist; one
// repeated by a fall-back transition has two instants and is not guessed.
func resolveWallTime(wall time.Time, loc *time.Location) (time.Time, error) {
	ts := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)

	if !sameWallClock(ts, wall) {
		return time.Time{}, fmt.Errorf("nonexistent local time %s", wall.Format("2006-01-02T15:04:05"))
	}
	if sameWallClock(ts.Add(-time.Hour).In(loc), wall) || sameWallClock(ts.Add(time.Hour).In(loc), wall) {
		return time.Time{}, fmt.Errorf("ambiguous local time %s", wall.Format("2006-01-02T15:04:05"))
	}
	return ts, nil
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
