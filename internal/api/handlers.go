package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleGetBox returns the box row including the last-measurement rollup.
// GET /api/v1/box
func (s *Server) handleGetBox(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	box, err := s.store.GetBox(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if box == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "box not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": box})
}

// handleListSensors returns all sensors of the box.
// GET /api/v1/sensors
func (s *Server) handleListSensors(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sensors, err := s.store.ListSensors(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sensors,
		"meta": gin.H{"count": len(sensors)},
	})
}

// handleSeries returns the pivoted wide table: one row per timestamp, one
// column per sensor display key.
// GET /api/v1/series?since=RFC3339&until=RFC3339
func (s *Server) handleSeries(c *gin.Context) {
	var since, until *time.Time

	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = &t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid until timestamp"})
			return
		}
		until = &t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	series, err := s.store.FetchPivotedSeries(ctx, since, until)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]gin.H, 0, len(series.Rows))
	for _, row := range series.Rows {
		entry := gin.H{"created_at": row.TS}
		for i, col := range series.Columns {
			if v := row.Values[i]; v != nil {
				entry[col] = *v
			}
		}
		rows = append(rows, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"columns": series.Columns,
		"rows":    rows,
		"meta":    gin.H{"count": len(rows)},
	})
}

// handleForecast returns the current stitched forecast, or 404 when no
// forecast has been published yet.
// GET /api/v1/forecast
func (s *Server) handleForecast(c *gin.Context) {
	result := s.forecasts.Current()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no forecast available yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
