package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umweltmonitoring/sensebox-monitor/internal/opensense"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestNormalizeFloorsToMinute(t *testing.T) {
	loc := berlin(t)

	points := Normalize([]opensense.RawRow{
		{CreatedAt: "2024-01-01T10:15:47.500Z", Value: 3.2},
	}, loc)

	require.Len(t, points, 1)
	// 10:15:47.500 UTC is 11:15:47.500 CET; flooring keeps 11:15:00 local.
	assert.True(t, points[0].TS.Equal(time.Date(2024, 1, 1, 11, 15, 0, 0, loc)),
		"got %s", points[0].TS)
	assert.Equal(t, 3.2, points[0].Value)
}

func TestNormalizeSortsAscending(t *testing.T) {
	points := Normalize([]opensense.RawRow{
		{CreatedAt: "2024-01-01T10:05:00.000Z", Value: 2},
		{CreatedAt: "2024-01-01T10:01:00.000Z", Value: 1},
		{CreatedAt: "2024-01-01T10:03:00.000Z", Value: 3},
	}, time.UTC)

	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i-1].TS.Before(points[i].TS))
	}
}

func TestNormalizeCollapsesSubMinuteJitter(t *testing.T) {
	points := Normalize([]opensense.RawRow{
		{CreatedAt: "2024-01-01T10:15:02.000Z", Value: 1.0},
		{CreatedAt: "2024-01-01T10:15:42.000Z", Value: 2.0},
		{CreatedAt: "2024-01-01T10:16:01.000Z", Value: 3.0},
	}, time.UTC)

	require.Len(t, points, 2)
	assert.Equal(t, 1.0, points[0].Value)
	assert.Equal(t, 3.0, points[1].Value)
}

func TestNormalizeDropsUnparseableTimestamps(t *testing.T) {
	points := Normalize([]opensense.RawRow{
		{CreatedAt: "garbage", Value: 1},
		{CreatedAt: "2024-01-01T10:00:00.000Z", Value: 2},
	}, time.UTC)

	require.Len(t, points, 1)
	assert.Equal(t, 2.0, points[0].Value)
}

func TestNormalizeDropsAmbiguousLocalTime(t *testing.T) {
	loc := berlin(t)

	// 2024-10-27 is the fall-back transition in Europe/Berlin: wall times
	// 02:00–02:59 occur twice. The middle row is zone-less and ambiguous.
	points := Normalize([]opensense.RawRow{
		{CreatedAt: "2024-10-27T00:30:00.000Z", Value: 1},
		{CreatedAt: "2024-10-27T02:30:00", Value: 2},
		{CreatedAt: "2024-10-27T03:30:00.000Z", Value: 3},
	}, loc)

	require.Len(t, points, 2)
	assert.Equal(t, 1.0, points[0].Value)
	assert.Equal(t, 3.0, points[1].Value)
}

func TestNormalizeDropsNonexistentLocalTime(t *testing.T) {
	loc := berlin(t)

	// 2024-03-31 02:30 does not exist in Europe/Berlin (spring forward).
	points := Normalize([]opensense.RawRow{
		{CreatedAt: "2024-03-31T02:30:00", Value: 1},
		{CreatedAt: "2024-03-31T03:30:00", Value: 2},
	}, loc)

	require.Len(t, points, 1)
	assert.Equal(t, 2.0, points[0].Value)
}

func TestResolveWallTimePlainDay(t *testing.T) {
	loc := berlin(t)

	wall, err := time.Parse("2006-01-02T15:04:05", "2024-07-15T14:30:00")
	require.NoError(t, err)

	ts, err := resolveWallTime(wall, loc)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 7, 15, 14, 30, 0, 0, loc)))
}
