package store

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

const pivotBaseSQL = `
SELECT s.title, s.unit, m.created_at, m.value
FROM measurement m
JOIN sensor s ON s.sensor_id = m.sensor_id`

// joinedRow is one line of the sensor/measurement join before pivoting.
type joinedRow struct {
	Title string
	Unit  string
	TS    time.Time
	Value float64
}

// FetchPivotedSeries joins sensor and measurement rows and pivots them into
// the wide per-timestamp view, labelling columns "Title in Unit". The view is
// built fresh on every call; nothing is cached across ingestion cycles.
func (s *Store) FetchPivotedSeries(ctx context.Context, since, until *time.Time) (models.PivotedSeries, error) {
	sql := pivotBaseSQL
	args := []any{}
	clause := " WHERE 1=1"
	argPos := 1
	if since != nil {
		clause += " AND m.created_at >= $" + strconv.Itoa(argPos)
		args = append(args, *since)
		argPos++
	}
	if until != nil {
		clause += " AND m.created_at <= $" + strconv.Itoa(argPos)
		args = append(args, *until)
	}
	sql += clause + " ORDER BY m.created_at"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return models.PivotedSeries{}, dataAccessErr("fetch pivoted series", err)
	}
	defer rows.Close()

	joined := make([]joinedRow, 0)
	for rows.Next() {
		var r joinedRow
		if err := rows.Scan(&r.Title, &r.Unit, &r.TS, &r.Value); err != nil {
			return models.PivotedSeries{}, dataAccessErr("scan measurement", err)
		}
		joined = append(joined, r)
	}
	if err := rows.Err(); err != nil {
		return models.PivotedSeries{}, dataAccessErr("fetch pivoted series", err)
	}

	return buildPivot(joined), nil
}

// buildPivot turns join rows into the wide table: one row per timestamp, one
// column per sensor display key, columns sorted for a stable layout.
func buildPivot(joined []joinedRow) models.PivotedSeries {
	columnSet := make(map[string]struct{})
	for _, r := range joined {
		columnSet[models.DisplayKey(r.Title, r.Unit)] = struct{}{}
	}
	columns := make([]string, 0, len(columnSet))
	for c := range columnSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	colIdx := make(map[string]int, len(columns))
	for i, c := range columns {
		colIdx[c] = i
	}

	rowIdx := make(map[time.Time]int)
	series := models.PivotedSeries{Columns: columns}
	for _, r := range joined {
		i, ok := rowIdx[r.TS]
		if !ok {
			i = len(series.Rows)
			rowIdx[r.TS] = i
			series.Rows = append(series.Rows, models.PivotedRow{
				TS:     r.TS,
				Values: make([]*float64, len(columns)),
			})
		}
		v := r.Value
		series.Rows[i].Values[colIdx[models.DisplayKey(r.Title, r.Unit)]] = &v
	}

	sort.Slice(series.Rows, func(a, b int) bool {
		return series.Rows[a].TS.Before(series.Rows[b].TS)
	})
	return series
}
