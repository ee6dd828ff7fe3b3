package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

// ErrInsufficientHistory signals that too few clean hourly points exist to
// fit a model. The caller retains the previous forecast.
var ErrInsufficientHistory = errors.New("insufficient history for forecast")

// EdgePolicy decides when the most recent hourly bucket is trustworthy. An
// in-progress hour has not seen all its readings, so its max is unreliable.
type EdgePolicy string

const (
	// EdgePolicyCurrentHour drops the last bucket unless it is the bucket of
	// the current wall-clock hour.
	EdgePolicyCurrentHour EdgePolicy = "drop-unless-current-hour"
	// EdgePolicyOnHour drops the last bucket unless the current wall-clock
	// minute is exactly zero.
	EdgePolicyOnHour EdgePolicy = "drop-unless-on-hour"
)

// PivotReader is the slice of the store gateway the engine needs.
type PivotReader interface {
	FetchPivotedSeries(ctx context.Context, since, until *time.Time) (models.PivotedSeries, error)
}

// Config tunes the forecast engine.
type Config struct {
	// Column is the pivot display key to forecast, e.g. "Temperature in °C".
	Column string
	// Policy selects the edge-bucket truncation behavior.
	Policy EdgePolicy
	// Horizon is the number of hourly steps to forecast.
	Horizon int
	// Trailing is how many observed points precede the forecast in the output.
	Trailing int
	// MinHistory is the minimum number of clean hourly points required to fit.
	MinHistory int
	// ScratchDir, when set, is removed after every fit to keep model scratch
	// artifacts from accumulating across retraining cycles.
	ScratchDir string
	// Location is the deployment zone. Stored buckets carry deployment-zone
	// wall times, so the clock is read in this zone when judging the edge
	// bucket, regardless of the host's zone.
	Location *time.Location
}

// Engine resamples raw history to an hourly series, fits a regression model
// and stitches a short trailing window of actuals with the forecast.
type Engine struct {
	store     PivotReader
	regressor Regressor
	cfg       Config
	now       func() time.Time
}

// NewEngine creates a forecast engine. Zero config fields get defaults:
// 6-step horizon, 3 trailing actuals, 24-point minimum history.
func NewEngine(store PivotReader, regressor Regressor, cfg Config) *Engine {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 6
	}
	if cfg.Trailing <= 0 {
		cfg.Trailing = 3
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = 24
	}
	if cfg.Policy == "" {
		cfg.Policy = EdgePolicyCurrentHour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{store: store, regressor: regressor, cfg: cfg, now: time.Now}
}

// TrainAndForecast fetches the raw history, fits the model and returns the
// stitched series: the last trailing actual hourly points followed by the
// forecast points, ascending, one uniform schema.
func (e *Engine) TrainAndForecast(ctx context.Context) ([]models.SeriesPoint, error) {
	series, err := e.store.FetchPivotedSeries(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	hourly := resampleHourlyMax(series.Column(e.cfg.Column))
	hourly = trimEdgeBucket(hourly, e.now().In(e.cfg.Location), e.cfg.Policy)
	if len(hourly) < e.cfg.MinHistory {
		return nil, fmt.Errorf("%w: %d clean hourly points, need %d", ErrInsufficientHistory, len(hourly), e.cfg.MinHistory)
	}

	model, err := e.regressor.Fit(hourly)
	e.purgeScratch()
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	predicted := model.Predict(e.cfg.Horizon)

	trail := e.cfg.Trailing
	if trail > len(hourly) {
		trail = len(hourly)
	}
	trailing := hourly[len(hourly)-trail:]
	stitched := make([]models.SeriesPoint, 0, len(trailing)+len(predicted))
	stitched = append(stitched, trailing...)
	stitched = append(stitched, predicted...)
	return stitched, nil
}

// purgeScratch removes model scratch artifacts after each run so repeated
// retraining does not grow disk usage without bound.
func (e *Engine) purgeScratch() {
	if e.cfg.ScratchDir == "" {
		return
	}
	if err := os.RemoveAll(e.cfg.ScratchDir); err != nil {
		log.Printf("forecast: purge scratch dir %s: %v", e.cfg.ScratchDir, err)
	}
}

// resampleHourlyMax reduces a minute-level series to one value per hour by
// taking the maximum reading within each hour bucket. Empty buckets are
// simply absent from the result.
func resampleHourlyMax(points []models.SeriesPoint) []models.SeriesPoint {
	buckets := make(map[time.Time]float64)
	for _, p := range points {
		hour := p.TS.Truncate(time.Hour)
		if cur, ok := buckets[hour]; !ok || p.Value > cur {
			buckets[hour] = p.Value
		}
	}

	hourly := make([]models.SeriesPoint, 0, len(buckets))
	for hour, max := range buckets {
		hourly = append(hourly, models.SeriesPoint{TS: hour, Value: max})
	}
	sort.Slice(hourly, func(a, b int) bool {
		return hourly[a].TS.Before(hourly[b].TS)
	})
	return hourly
}

// trimEdgeBucket applies the configured policy to the most recent bucket.
// now must already be expressed in the deployment zone; buckets carry
// deployment-zone wall times, so the comparison is wall clock against wall
// clock.
func trimEdgeBucket(hourly []models.SeriesPoint, now time.Time, policy EdgePolicy) []models.SeriesPoint {
	if len(hourly) == 0 {
		return hourly
	}

	switch policy {
	case EdgePolicyOnHour:
		if now.Minute() != 0 {
			return hourly[:len(hourly)-1]
		}
	default: // EdgePolicyCurrentHour
		last := hourly[len(hourly)-1].TS
		if last.Format("2006-01-02T15") != now.Format("2006-01-02T15") {
			return hourly[:len(hourly)-1]
		}
	}
	return hourly
}
