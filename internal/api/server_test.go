package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umweltmonitoring/sensebox-monitor/internal/config"
	"github.com/umweltmonitoring/sensebox-monitor/internal/forecast"
	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

type fakeStore struct {
	box     *models.Box
	sensors []models.Sensor
	series  models.PivotedSeries
	err     error
}

func (f *fakeStore) GetBox(_ context.Context) (*models.Box, error) {
	return f.box, f.err
}

func (f *fakeStore) ListSensors(_ context.Context) ([]models.Sensor, error) {
	return f.sensors, f.err
}

func (f *fakeStore) FetchPivotedSeries(_ context.Context, _, _ *time.Time) (models.PivotedSeries, error) {
	return f.series, f.err
}

func newTestServer(store Store, slot *forecast.Slot) *Server {
	return New(config.Config{Port: 8080}, store, slot)
}

func doGet(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeStore{}, forecast.NewSlot())

	rec := doGet(srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetBox(t *testing.T) {
	last := time.Date(2024, 6, 20, 11, 59, 0, 0, time.UTC)
	store := &fakeStore{box: &models.Box{
		ID:                "box1",
		Name:              "Campus Station",
		LastMeasurementAt: &last,
	}}
	srv := newTestServer(store, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/box")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.Box `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Campus Station", body.Data.Name)
	require.NotNil(t, body.Data.LastMeasurementAt)
	assert.True(t, body.Data.LastMeasurementAt.Equal(last))
}

func TestGetBoxNotInitialized(t *testing.T) {
	srv := newTestServer(&fakeStore{}, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/box")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSensors(t *testing.T) {
	store := &fakeStore{sensors: []models.Sensor{
		{ID: "s1", BoxID: "box1", Title: "Temperature", Unit: "°C"},
		{ID: "s2", BoxID: "box1", Title: "rel. Humidity", Unit: "%"},
	}}
	srv := newTestServer(store, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/sensors")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []models.Sensor `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Meta.Count)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "Temperature", body.Data[0].Title)
}

func TestSeries(t *testing.T) {
	v1, v2 := 21.5, 55.0
	store := &fakeStore{series: models.PivotedSeries{
		Columns: []string{"Temperature in °C", "rel. Humidity in %"},
		Rows: []models.PivotedRow{
			{TS: time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC), Values: []*float64{&v1, &v2}},
			{TS: time.Date(2024, 6, 20, 10, 1, 0, 0, time.UTC), Values: []*float64{&v1, nil}},
		},
	}}
	srv := newTestServer(store, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/series")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Temperature in °C", "rel. Humidity in %"}, body.Columns)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, 21.5, body.Rows[0]["Temperature in °C"])
	assert.Equal(t, 55.0, body.Rows[0]["rel. Humidity in %"])
	// Gaps are omitted from the row object rather than serialized as null.
	_, present := body.Rows[1]["rel. Humidity in %"]
	assert.False(t, present)
}

func TestSeriesRejectsBadTimestamps(t *testing.T) {
	srv := newTestServer(&fakeStore{}, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/series?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(srv, "/api/v1/series?until=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeriesStoreError(t *testing.T) {
	srv := newTestServer(&fakeStore{err: errors.New("connection refused")}, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/series")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestForecastBeforeFirstPublish(t *testing.T) {
	srv := newTestServer(&fakeStore{}, forecast.NewSlot())

	rec := doGet(srv, "/api/v1/forecast")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForecastAfterPublish(t *testing.T) {
	slot := forecast.NewSlot()
	srv := newTestServer(&fakeStore{}, slot)

	slot.Publish(&forecast.Result{
		Points: []models.SeriesPoint{
			{TS: time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC), Value: 21.5},
			{TS: time.Date(2024, 6, 20, 11, 0, 0, 0, time.UTC), Value: 21.9},
		},
		TrainedAt: time.Date(2024, 6, 20, 11, 0, 0, 0, time.UTC),
	})

	rec := doGet(srv, "/api/v1/forecast")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data forecast.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Points, 2)
	assert.Equal(t, 21.9, body.Data.Points[1].Value)
}
