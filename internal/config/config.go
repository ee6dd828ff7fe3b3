package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/umweltmonitoring/sensebox-monitor/internal/forecast"
)

const (
	defaultBaseURL        = "https://api.opensensemap.org"
	defaultTimezone       = "Europe/Berlin"
	defaultEpoch          = "2024-01-01T00:00:00.000Z"
	defaultIngestInterval = time.Minute
	defaultJobTimeout     = 5 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	defaultForecastColumn = "Temperature in °C"
	defaultMinHistory     = 24
	defaultPort           = 8080
)

// Config holds runtime configuration for the monitor.
type Config struct {
	DatabaseURL    string
	BoxID          string
	BaseURL        string
	Location       *time.Location
	Epoch          time.Time
	IngestInterval time.Duration
	JobTimeout     time.Duration
	RequestTimeout time.Duration

	ForecastColumn     string
	ForecastEdgePolicy forecast.EdgePolicy
	ForecastMinHistory int
	ForecastScratchDir string

	Port int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		BaseURL:            defaultBaseURL,
		IngestInterval:     defaultIngestInterval,
		JobTimeout:         defaultJobTimeout,
		RequestTimeout:     defaultRequestTimeout,
		ForecastColumn:     defaultForecastColumn,
		ForecastEdgePolicy: forecast.EdgePolicyCurrentHour,
		ForecastMinHistory: defaultMinHistory,
		Port:               defaultPort,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.BoxID = strings.TrimSpace(os.Getenv("SENSEBOX_ID"))
	if cfg.BoxID == "" {
		return cfg, errors.New("SENSEBOX_ID is required")
	}

	if v := strings.TrimSpace(os.Getenv("OSEM_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	tz := defaultTimezone
	if v := strings.TrimSpace(os.Getenv("TIMEZONE")); v != "" {
		tz = v
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	epoch := defaultEpoch
	if v := strings.TrimSpace(os.Getenv("INGEST_EPOCH")); v != "" {
		epoch = v
	}
	cfg.Epoch, err = time.Parse("2006-01-02T15:04:05.000Z", epoch)
	if err != nil {
		return cfg, fmt.Errorf("invalid INGEST_EPOCH: %w", err)
	}

	if v := strings.TrimSpace(os.Getenv("INGEST_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid INGEST_INTERVAL: %s", v)
		}
		cfg.IngestInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("JOB_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT: %s", v)
		}
		cfg.JobTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("FORECAST_COLUMN")); v != "" {
		cfg.ForecastColumn = v
	}

	if v := strings.TrimSpace(os.Getenv("FORECAST_EDGE_POLICY")); v != "" {
		switch forecast.EdgePolicy(v) {
		case forecast.EdgePolicyCurrentHour, forecast.EdgePolicyOnHour:
			cfg.ForecastEdgePolicy = forecast.EdgePolicy(v)
		default:
			return cfg, fmt.Errorf("invalid FORECAST_EDGE_POLICY: %s", v)
		}
	}

	if v := strings.TrimSpace(os.Getenv("FORECAST_MIN_HISTORY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid FORECAST_MIN_HISTORY: %s", v)
		}
		cfg.ForecastMinHistory = n
	}

	cfg.ForecastScratchDir = strings.TrimSpace(os.Getenv("FORECAST_SCRATCH_DIR"))

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", v)
		}
		cfg.Port = port
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
