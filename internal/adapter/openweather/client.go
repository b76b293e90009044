// Package openweather fetches current conditions and short-range forecasts
// from OpenWeatherMap, one call per cluster center.
package openweather

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/couchcryptid/hazard-alert-service/internal/adapter/fetch"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Client queries the OpenWeatherMap API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client with an explicit per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Observe fetches current conditions at the point plus the 5-day forecast
// reduced to per-day maximum temperatures. A forecast failure degrades to
// current conditions only.
func (c *Client) Observe(ctx context.Context, g domain.Geo) (domain.WeatherObservation, error) {
	obs, err := c.current(ctx, g)
	if err != nil {
		return domain.WeatherObservation{}, err
	}

	maxes, err := c.forecastMax(ctx, g)
	if err != nil {
		c.logger.Warn("weather forecast fetch failed, keeping current conditions",
			"lat", g.Lat, "lon", g.Lon, "error", err)
		return obs, nil
	}
	obs.ForecastMaxC = maxes
	return obs, nil
}

func (c *Client) current(ctx context.Context, g domain.Geo) (domain.WeatherObservation, error) {
	began := time.Now()
	var payload currentResponse
	err := fetch.GetJSON(ctx, c.httpClient, c.endpoint("/weather", g), &payload)
	c.metrics.ProviderDuration.WithLabelValues("openweather").Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("openweather", "error").Inc()
		return domain.WeatherObservation{}, fmt.Errorf("current conditions: %w", err)
	}
	c.metrics.ProviderRequests.WithLabelValues("openweather", "success").Inc()

	obs := domain.WeatherObservation{
		TempC:       payload.Main.Temp,
		FeelsLikeC:  payload.Main.FeelsLike,
		HumidityPct: payload.Main.Humidity,
		WindSpeedMS: payload.Wind.Speed,
		ObservedAt:  time.Unix(payload.Dt, 0).UTC(),
	}
	if len(payload.Weather) > 0 {
		obs.Description = payload.Weather[0].Description
	}
	return obs, nil
}

// forecastMax reduces the 5-day/3-hour forecast to one maximum temperature
// per calendar day, ordered by date.
func (c *Client) forecastMax(ctx context.Context, g domain.Geo) ([]float64, error) {
	var payload forecastResponse
	if err := fetch.GetJSON(ctx, c.httpClient, c.endpoint("/forecast", g), &payload); err != nil {
		return nil, err
	}

	byDay := make(map[string]float64)
	for _, e := range payload.List {
		if len(e.DtTxt) < 10 {
			continue
		}
		day := e.DtTxt[:10]
		if max, ok := byDay[day]; !ok || e.Main.TempMax > max {
			byDay[day] = e.Main.TempMax
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	maxes := make([]float64, len(days))
	for i, day := range days {
		maxes[i] = byDay[day]
	}
	return maxes, nil
}

func (c *Client) endpoint(path string, g domain.Geo) string {
	params := url.Values{
		"lat":   {fmt.Sprintf("%.4f", g.Lat)},
		"lon":   {fmt.Sprintf("%.4f", g.Lon)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	return c.baseURL + path + "?" + params.Encode()
}

// OpenWeatherMap API response types.

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Dt int64 `json:"dt"`
}

type forecastResponse struct {
	List []struct {
		Main struct {
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		DtTxt string `json:"dt_txt"` // "2026-08-28 15:00:00"
	} `json:"list"`
}
