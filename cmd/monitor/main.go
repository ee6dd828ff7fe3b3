package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/api"
	"github.com/umweltmonitoring/sensebox-monitor/internal/config"
	"github.com/umweltmonitoring/sensebox-monitor/internal/forecast"
	"github.com/umweltmonitoring/sensebox-monitor/internal/ingest"
	"github.com/umweltmonitoring/sensebox-monitor/internal/metrics"
	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
	"github.com/umweltmonitoring/sensebox-monitor/internal/opensense"
	"github.com/umweltmonitoring/sensebox-monitor/internal/scheduler"
	"github.com/umweltmonitoring/sensebox-monitor/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("monitor failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	client := opensense.New(&http.Client{Timeout: cfg.RequestTimeout}, cfg.BaseURL)

	if err := bootstrap(ctx, cfg, client, st); err != nil {
		return err
	}

	pipeline := ingest.New(client, st, cfg.BoxID, cfg.Epoch, cfg.Location)
	engine := forecast.NewEngine(st, forecast.LeastSquares{}, forecast.Config{
		Column:     cfg.ForecastColumn,
		Policy:     cfg.ForecastEdgePolicy,
		MinHistory: cfg.ForecastMinHistory,
		ScratchDir: cfg.ForecastScratchDir,
		Location:   cfg.Location,
	})
	slot := forecast.NewSlot()

	ingestJob := func(ctx context.Context) error {
		stats, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		log.Printf("ingest: %d sensors, %d rows inserted, %d failed", stats.Sensors, stats.Inserted, stats.Failed)
		return nil
	}

	forecastJob := func(ctx context.Context) error {
		points, err := engine.TrainAndForecast(ctx)
		if err != nil {
			// The previous forecast stays published; readers never see an
			// empty series because of one bad retraining run.
			return err
		}
		slot.Publish(&forecast.Result{Points: points, TrainedAt: time.Now().UTC()})
		metrics.ForecastPublishedAt.SetToCurrentTime()
		log.Printf("forecast: published %d points", len(points))
		return nil
	}

	// First cycle runs synchronously so a fresh deployment backfills from the
	// configured epoch before the timers take over.
	if stats, err := pipeline.Run(ctx); err != nil {
		log.Printf("initial ingest failed: %v", err)
	} else {
		log.Printf("initial ingest: %d sensors, %d rows inserted", stats.Sensors, stats.Inserted)
	}

	sched := scheduler.New(ingestJob, forecastJob, cfg.IngestInterval, cfg.JobTimeout)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := api.New(cfg, st, slot)
	log.Printf("monitor API listening on %s", cfg.ListenAddr())
	return srv.Run(ctx)
}

// bootstrap seeds the box and sensor rows from the remote metadata document.
// Both inserts are insert-or-ignore, so restarting is harmless.
func bootstrap(ctx context.Context, cfg config.Config, client *opensense.Client, st *store.Store) error {
	doc, err := client.FetchBox(ctx, cfg.BoxID)
	if err != nil {
		return err
	}

	box := boxFromDocument(doc)
	if err := st.UpsertBox(ctx, box); err != nil {
		return err
	}

	sensors := make([]models.Sensor, 0, len(doc.Sensors))
	for _, sen := range doc.Sensors {
		sensorType := sen.SensorType
		icon := sen.Icon
		sensors = append(sensors, models.Sensor{
			ID:         sen.ID,
			BoxID:      doc.ID,
			Title:      sen.Title,
			Unit:       sen.Unit,
			SensorType: &sensorType,
			Icon:       &icon,
		})
	}
	if err := st.UpsertSensors(ctx, doc.ID, sensors); err != nil {
		return err
	}

	log.Printf("bootstrap: box %q with %d sensors", doc.Name, len(sensors))
	return nil
}

func boxFromDocument(doc opensense.BoxDocument) models.Box {
	box := models.Box{
		ID:        doc.ID,
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
	}
	if doc.Description != "" {
		box.Description = &doc.Description
	}
	if doc.Exposure != "" {
		box.Exposure = &doc.Exposure
	}

	// Coordinates arrive as [lon, lat, alt]; altitude is optional.
	coords := doc.CurrentLocation.Coordinates
	if len(coords) >= 2 {
		box.Longitude = coords[0]
		box.Latitude = coords[1]
	}
	if len(coords) >= 3 {
		box.Altitude = &coords[2]
	}
	return box
}
