package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umweltmonitoring/sensebox-monitor/internal/config"
	"github.com/umweltmonitoring/sensebox-monitor/internal/forecast"
	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

// Store is the slice of the store gateway the API reads from.
type Store interface {
	GetBox(ctx context.Context) (*models.Box, error)
	ListSensors(ctx context.Context) ([]models.Sensor, error)
	FetchPivotedSeries(ctx context.Context, since, until *time.Time) (models.PivotedSeries, error)
}

// ForecastReader exposes the current forecast snapshot without blocking.
type ForecastReader interface {
	Current() *forecast.Result
}

// Server bundles router and dependencies for the dashboard-facing API.
type Server struct {
	cfg       config.Config
	store     Store
	forecasts ForecastReader
	engine    *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, forecasts ForecastReader) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, store: store, forecasts: forecasts, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/box", s.handleGetBox)
		v1.GET("/sensors", s.handleListSensors)
		v1.GET("/series", s.handleSeries)
		v1.GET("/forecast", s.handleForecast)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
