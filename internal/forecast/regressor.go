package forecast

import (
	"errors"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

// Regressor fits a model against an hourly series. The model is a black box
// to the engine; implementations can be swapped without touching pipeline
// logic.
type Regressor interface {
	Fit(points []models.SeriesPoint) (Model, error)
}

// Model produces point forecasts for hourly steps beyond the fitted series.
type Model interface {
	Predict(steps int) []models.SeriesPoint
}

// LeastSquares fits an ordinary least-squares linear trend over the hourly
// series.
type LeastSquares struct{}

type linearModel struct {
	origin    time.Time
	last      time.Time
	slope     float64
	intercept float64
}

// Fit computes the OLS line through (hours since first point, value).
func (LeastSquares) Fit(points []models.SeriesPoint) (Model, error) {
	if len(points) < 2 {
		return nil, errors.New("least squares needs at least two points")
	}

	origin := points[0].TS
	var sumX, sumY, sumXX, sumXY float64
	for _, p := range points {
		x := p.TS.Sub(origin).Hours()
		sumX += x
		sumY += p.Value
		sumXX += x * x
		sumXY += x * p.Value
	}

	n := float64(len(points))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil, errors.New("degenerate series: all points share one timestamp")
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	return &linearModel{
		origin:    origin,
		last:      points[len(points)-1].TS,
		slope:     slope,
		intercept: intercept,
	}, nil
}

// Predict returns the next steps hourly points beyond the last fitted bucket.
func (m *linearModel) Predict(steps int) []models.SeriesPoint {
	out := make([]models.SeriesPoint, 0, steps)
	for i := 1; i <= steps; i++ {
		ts := m.last.Add(time.Duration(i) * time.Hour)
		x := ts.Sub(m.origin).Hours()
		out = append(out, models.SeriesPoint{TS: ts, Value: m.intercept + m.slope*x})
	}
	return out
}
