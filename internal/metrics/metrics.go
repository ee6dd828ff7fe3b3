package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// IngestCyclesTotal counts finished ingestion cycles by outcome.
	IngestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total number of ingestion cycles by status",
		},
		[]string{"status"},
	)

	// IngestRowsInserted counts measurement rows actually written.
	IngestRowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_rows_inserted_total",
			Help: "Total number of measurement rows inserted",
		},
	)

	// IngestSensorFailures counts per-sensor fetch/parse failures that were
	// isolated without aborting the cycle.
	IngestSensorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_sensor_failures_total",
			Help: "Total number of per-sensor failures during ingestion",
		},
	)
)

// Job metrics
var (
	// JobDuration tracks how long each scheduled job run took.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// JobRunning is 1 while a job is executing, 0 while idle.
	JobRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_running",
			Help: "Whether a scheduled job is currently running (0/1)",
		},
		[]string{"job"},
	)

	// JobSkippedTotal counts ticks skipped because the previous run of the
	// same job was still in flight.
	JobSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_skipped_total",
			Help: "Total number of job ticks skipped due to an overlapping run",
		},
		[]string{"job"},
	)
)

// Forecast metrics
var (
	// ForecastRunsTotal counts forecast retraining runs by outcome.
	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_runs_total",
			Help: "Total number of forecast retraining runs by status",
		},
		[]string{"status"},
	)

	// ForecastPublishedAt is the unix timestamp of the last published forecast.
	ForecastPublishedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_published_at_seconds",
			Help: "Unix timestamp of the most recently published forecast",
		},
	)
)

// ObserveJob records the outcome and duration of one job run.
func ObserveJob(job string, started time.Time, err error) {
	JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	switch job {
	case "ingest":
		IngestCyclesTotal.WithLabelValues(status).Inc()
	case "forecast":
		ForecastRunsTotal.WithLabelValues(status).Inc()
	}
}
