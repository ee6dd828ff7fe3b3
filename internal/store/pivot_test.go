package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPivot(t *testing.T) {
	t1 := time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 20, 10, 1, 0, 0, time.UTC)

	joined := []joinedRow{
		{Title: "Temperature", Unit: "°C", TS: t2, Value: 21.7},
		{Title: "rel. Humidity", Unit: "%", TS: t1, Value: 55},
		{Title: "Temperature", Unit: "°C", TS: t1, Value: 21.5},
	}

	series := buildPivot(joined)

	// Columns are labelled "Title in Unit" and sorted for a stable layout.
	require.Equal(t, []string{"Temperature in °C", "rel. Humidity in %"}, series.Columns)

	require.Len(t, series.Rows, 2)
	assert.True(t, series.Rows[0].TS.Equal(t1))
	assert.True(t, series.Rows[1].TS.Equal(t2))

	tempIdx := series.ColumnIndex("Temperature in °C")
	humIdx := series.ColumnIndex("rel. Humidity in %")

	require.NotNil(t, series.Rows[0].Values[tempIdx])
	assert.Equal(t, 21.5, *series.Rows[0].Values[tempIdx])
	require.NotNil(t, series.Rows[0].Values[humIdx])
	assert.Equal(t, 55.0, *series.Rows[0].Values[humIdx])

	// The humidity sensor has no reading at t2; the gap stays nil.
	require.NotNil(t, series.Rows[1].Values[tempIdx])
	assert.Equal(t, 21.7, *series.Rows[1].Values[tempIdx])
	assert.Nil(t, series.Rows[1].Values[humIdx])
}

func TestBuildPivotEmpty(t *testing.T) {
	series := buildPivot(nil)
	assert.Empty(t, series.Columns)
	assert.Empty(t, series.Rows)
}

func TestPivotedSeriesColumn(t *testing.T) {
	t1 := time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 20, 10, 1, 0, 0, time.UTC)

	series := buildPivot([]joinedRow{
		{Title: "Temperature", Unit: "°C", TS: t1, Value: 21.5},
		{Title: "rel. Humidity", Unit: "%", TS: t2, Value: 54},
	})

	temps := series.Column("Temperature in °C")
	require.Len(t, temps, 1)
	assert.Equal(t, 21.5, temps[0].Value)

	assert.Nil(t, series.Column("Wind in m/s"))
}
