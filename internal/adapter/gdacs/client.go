// Package gdacs fetches the GDACS disaster RSS feed and extracts tsunami
// events from it.
package gdacs

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-alert-service/internal/adapter/fetch"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Client reads the GDACS alert feed.
type Client struct {
	httpClient *http.Client
	feedURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a GDACS feed client with an explicit per-call timeout.
func NewClient(feedURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		feedURL:    feedURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ActiveTsunamis fetches the feed and returns the items whose title
// indicates a tsunami, normalized into hazard events. Items without a
// parseable georss point are dropped.
func (c *Client) ActiveTsunamis(ctx context.Context) ([]domain.HazardEvent, error) {
	began := time.Now()
	body, err := fetch.Get(ctx, c.httpClient, c.feedURL)
	c.metrics.ProviderDuration.WithLabelValues("gdacs").Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("gdacs", "error").Inc()
		return nil, fmt.Errorf("gdacs feed: %w", err)
	}
	c.metrics.ProviderRequests.WithLabelValues("gdacs", "success").Inc()

	var feed rss
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode gdacs feed: %w", err)
	}

	var events []domain.HazardEvent
	for _, it := range feed.Channel.Items {
		if !strings.Contains(strings.ToLower(it.Title), "tsunami") {
			continue
		}
		geo, ok := parsePoint(it.Point)
		if !ok {
			c.logger.Warn("gdacs item without parseable point", "title", it.Title)
			continue
		}
		events = append(events, domain.HazardEvent{
			ID:         eventID(it),
			Family:     domain.FamilyTsunami,
			Time:       parsePubDate(it.PubDate),
			Geo:        geo,
			Magnitude:  it.Severity.Value,
			Place:      it.Title,
			AlertLevel: it.AlertLevel,
		})
	}
	return events, nil
}

// parsePoint parses a georss "lat lon" pair.
func parsePoint(s string) (domain.Geo, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return domain.Geo{}, false
	}
	lat, errLat := strconv.ParseFloat(fields[0], 64)
	lon, errLon := strconv.ParseFloat(fields[1], 64)
	if errLat != nil || errLon != nil {
		return domain.Geo{}, false
	}
	g := domain.Geo{Lat: lat, Lon: lon}
	return g, g.Valid()
}

func parsePubDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func eventID(it item) string {
	if it.EventID != "" {
		return "gdacs-" + it.EventID
	}
	return it.GUID
}

// GDACS RSS feed types. The gdacs and georss fields are namespaced.

type rss struct {
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title      string `xml:"title"`
	GUID       string `xml:"guid"`
	PubDate    string `xml:"pubDate"`
	Point      string `xml:"http://www.georss.org/georss point"`
	AlertLevel string `xml:"http://www.gdacs.org alertlevel"`
	EventID    string `xml:"http://www.gdacs.org eventid"`
	Severity   struct {
		Value float64 `xml:"value,attr"`
	} `xml:"http://www.gdacs.org severity"`
}
