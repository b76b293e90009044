// Package usgs fetches earthquake events from the USGS fdsnws catalog and
// normalizes the GeoJSON feed into hazard events.
package usgs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/hazard-alert-service/internal/adapter/fetch"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Client queries the USGS earthquake catalog.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a USGS catalog client with an explicit per-call timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// RecentQuakes fetches events within the rolling window ending now, at or
// above minMagnitude.
func (c *Client) RecentQuakes(ctx context.Context, minMagnitude float64, window time.Duration) ([]domain.HazardEvent, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	params := url.Values{
		"format":       {"geojson"},
		"starttime":    {start.Format(time.RFC3339)},
		"endtime":      {end.Format(time.RFC3339)},
		"minmagnitude": {strconv.FormatFloat(minMagnitude, 'f', -1, 64)},
	}

	began := time.Now()
	var payload response
	err := fetch.GetJSON(ctx, c.httpClient, c.baseURL+"?"+params.Encode(), &payload)
	c.metrics.ProviderDuration.WithLabelValues("usgs").Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("usgs", "error").Inc()
		return nil, fmt.Errorf("usgs query: %w", err)
	}
	c.metrics.ProviderRequests.WithLabelValues("usgs", "success").Inc()

	events := make([]domain.HazardEvent, 0, len(payload.Features))
	for _, f := range payload.Features {
		if len(f.Geometry.Coordinates) < 2 {
			c.logger.Warn("usgs feature without coordinates", "id", f.ID)
			continue
		}
		ev := domain.HazardEvent{
			ID:        f.ID,
			Family:    domain.FamilyQuake,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Magnitude: f.Properties.Mag,
			Place:     f.Properties.Place,
			Geo: domain.Geo{
				Lat: f.Geometry.Coordinates[1],
				Lon: f.Geometry.Coordinates[0],
			},
		}
		if len(f.Geometry.Coordinates) >= 3 {
			ev.DepthKm = f.Geometry.Coordinates[2]
		}
		events = append(events, ev)
	}
	return events, nil
}

// USGS GeoJSON response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   float64 `json:"mag"`
		Place string  `json:"place"`
		Time  int64   `json:"time"` // epoch milliseconds
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth_km]
	} `json:"geometry"`
}
