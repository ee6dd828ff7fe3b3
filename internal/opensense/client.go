package opensense

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrRemoteUnavailable marks non-2xx responses and network failures from the
// remote API. Retriable; an ingestion cycle continues with other sensors.
var ErrRemoteUnavailable = errors.New("remote source unavailable")

// apiTimeFormat is the exact ISO-8601 UTC millisecond "Z" encoding the remote
// API expects for window bounds. The API is format-sensitive.
const apiTimeFormat = "2006-01-02T15:04:05.000Z"

// FormatWindowBound encodes an instant the way the remote API requires.
func FormatWindowBound(ts time.Time) string {
	return ts.UTC().Format(apiTimeFormat)
}

// BoxDocument models the box metadata JSON returned by the remote API.
type BoxDocument struct {
	ID                string          `json:"_id"`
	Name              string          `json:"name"`
	CreatedAt         time.Time       `json:"createdAt"`
	Description       string          `json:"description"`
	Exposure          string          `json:"exposure"`
	LastMeasurementAt *time.Time      `json:"lastMeasurementAt"`
	CurrentLocation   CurrentLocation `json:"currentLocation"`
	Sensors           []SensorEntry   `json:"sensors"`
}

// CurrentLocation holds the box geolocation as [lon, lat, alt].
type CurrentLocation struct {
	Coordinates []float64 `json:"coordinates"`
}

// SensorEntry is one sensor of the box metadata document.
type SensorEntry struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Unit       string `json:"unit"`
	SensorType string `json:"sensorType"`
	Icon       string `json:"icon"`
}

// SensorRef identifies one sensor of the catalogue for fetching.
type SensorRef struct {
	ID    string
	Title string
}

// RawRow is one un-normalized CSV measurement line. CreatedAt is kept as the
// source string; timezone resolution happens downstream.
type RawRow struct {
	CreatedAt string
	Value     float64
}

// Client fetches box metadata and time-windowed CSV measurement series from
// the openSenseMap-style remote API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a remote source client for the given API base URL.
func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// FetchBox retrieves the full metadata document for a box.
func (c *Client) FetchBox(ctx context.Context, boxID string) (BoxDocument, error) {
	var doc BoxDocument

	body, err := c.get(ctx, c.baseURL+"/boxes/"+boxID)
	if err != nil {
		return doc, err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode box document: %w", err)
	}
	return doc, nil
}

// ListSensors fetches the current sensor catalogue for a box. Fetched fresh
// on every ingestion cycle; catalogues can change.
func (c *Client) ListSensors(ctx context.Context, boxID string) ([]SensorRef, error) {
	doc, err := c.FetchBox(ctx, boxID)
	if err != nil {
		return nil, err
	}

	refs := make([]SensorRef, 0, len(doc.Sensors))
	for _, sen := range doc.Sensors {
		refs = append(refs, SensorRef{ID: sen.ID, Title: sen.Title})
	}
	return refs, nil
}

// FetchMeasurements retrieves the CSV-encoded series of one phenomenon for
// the window [from, to]. An empty window yields an empty slice, not an error;
// that is the steady state between polling cycles.
func (c *Client) FetchMeasurements(ctx context.Context, boxID, sensorTitle string, from, to time.Time) ([]RawRow, error) {
	params := url.Values{}
	params.Set("boxid", boxID)
	params.Set("columns", "unit,value,createdAt")
	params.Set("download", "true")
	params.Set("format", "csv")
	params.Set("from-date", FormatWindowBound(from))
	params.Set("phenomenon", sensorTitle)
	params.Set("to-date", FormatWindowBound(to))

	body, err := c.get(ctx, c.baseURL+"/boxes/data?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return parseMeasurementCSV(body)
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %s", ErrRemoteUnavailable, resp.Status)
	}
	return resp.Body, nil
}

// parseMeasurementCSV reads `unit,value,createdAt` lines. Column order is
// taken from the header. Lines with a malformed value are skipped.
func parseMeasurementCSV(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []RawRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	valueIdx, createdIdx := -1, -1
	for i, name := range header {
		switch name {
		case "value":
			valueIdx = i
		case "createdAt":
			createdIdx = i
		}
	}
	if valueIdx < 0 || createdIdx < 0 {
		return nil, fmt.Errorf("csv header missing value/createdAt columns: %v", header)
	}

	rows := make([]RawRow, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(record) <= valueIdx || len(record) <= createdIdx {
			continue
		}

		value, err := strconv.ParseFloat(record[valueIdx], 64)
		if err != nil {
			continue
		}
		rows = append(rows, RawRow{CreatedAt: record[createdIdx], Value: value})
	}
	return rows, nil
}
