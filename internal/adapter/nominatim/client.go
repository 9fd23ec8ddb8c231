// Package nominatim resolves city names to coordinates via the OpenStreetMap
// Nominatim search API. It backfills registry entries that ship without
// coordinates; article ingestion never blocks on it.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vsharha/WorldOnFire-backend/internal/observability"
)

// Result is a resolved location.
type Result struct {
	Lat         float64
	Lon         float64
	Name        string
	DisplayName string
}

// Geocoder resolves a city and country to coordinates. An empty Result with
// a nil error means the location was not found.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (Result, error)
}

// Client implements Geocoder against a Nominatim endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent on every request.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: "worldonfire-backend/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves "city, country" to coordinates, taking the top-ranked
// match.
func (c *Client) Geocode(ctx context.Context, city, country string) (Result, error) {
	query := city
	if country != "" {
		query = fmt.Sprintf("%s, %s", city, country)
	}
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("no geocoding match", "query", query)
		return Result{}, nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return Result{
		Lat:         lat,
		Lon:         lon,
		Name:        p.Name,
		DisplayName: p.DisplayName,
	}, nil
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}
