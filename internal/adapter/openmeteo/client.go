// Package openmeteo fetches daily river discharge forecasts from the
// Open-Meteo flood API. All cluster centers are requested in one batched
// call, so the provider call count stays constant as clusters grow.
package openmeteo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-alert-service/internal/adapter/fetch"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Series window: one week behind for the rolling average baseline, one week
// ahead for the threshold scan.
const (
	forecastDays = 7
	pastDays     = 7
)

// Client queries the Open-Meteo flood API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a flood forecast client with an explicit per-call timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// DischargeForecast fetches the daily discharge series for every center in
// one request, returning series parallel to the input order.
func (c *Client) DischargeForecast(ctx context.Context, centers []domain.Geo) ([]domain.DischargeSeries, error) {
	if len(centers) == 0 {
		return nil, nil
	}

	lats := make([]string, len(centers))
	lons := make([]string, len(centers))
	for i, g := range centers {
		lats[i] = fmt.Sprintf("%.4f", g.Lat)
		lons[i] = fmt.Sprintf("%.4f", g.Lon)
	}

	params := url.Values{
		"latitude":      {strings.Join(lats, ",")},
		"longitude":     {strings.Join(lons, ",")},
		"daily":         {"river_discharge"},
		"forecast_days": {fmt.Sprintf("%d", forecastDays)},
		"past_days":     {fmt.Sprintf("%d", pastDays)},
	}

	began := time.Now()
	body, err := fetch.Get(ctx, c.httpClient, c.baseURL+"?"+params.Encode())
	c.metrics.ProviderDuration.WithLabelValues("openmeteo").Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("openmeteo", "error").Inc()
		return nil, fmt.Errorf("flood forecast: %w", err)
	}
	c.metrics.ProviderRequests.WithLabelValues("openmeteo", "success").Inc()

	points, err := decodePoints(body)
	if err != nil {
		return nil, err
	}
	if len(points) != len(centers) {
		return nil, fmt.Errorf("flood forecast: got %d series for %d centers", len(points), len(centers))
	}

	series := make([]domain.DischargeSeries, len(points))
	for i, p := range points {
		series[i] = domain.DischargeSeries{
			Days:      p.Daily.Time,
			Discharge: p.Daily.RiverDischarge,
		}
	}
	return series, nil
}

// decodePoints handles the provider's response shape: a bare object for a
// single point, an array for multiple points.
func decodePoints(body []byte) ([]point, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var points []point
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, fmt.Errorf("decode flood response: %w", err)
		}
		return points, nil
	}
	var p point
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decode flood response: %w", err)
	}
	return []point{p}, nil
}

// Open-Meteo flood API response types.

type point struct {
	Daily struct {
		Time           []string  `json:"time"`
		RiverDischarge []float64 `json:"river_discharge"`
	} `json:"daily"`
}
