package openweather

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-alert-service/internal/cache"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// Observer fetches a weather observation for a point.
type Observer interface {
	Observe(ctx context.Context, g domain.Geo) (domain.WeatherObservation, error)
}

// CachedClient wraps an Observer with a bounded LRU cache keyed by rounded
// coordinates, so nearby cluster centers share one upstream call per TTL
// window.
type CachedClient struct {
	inner   Observer
	cache   *cache.Cache[domain.WeatherObservation]
	metrics *observability.Metrics
}

// NewCachedClient creates a caching decorator around inner.
func NewCachedClient(inner Observer, capacity int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		cache:   cache.New[domain.WeatherObservation](capacity, ttl, clock),
		metrics: metrics,
	}
}

// Observe returns a cached observation when available, otherwise fetches and
// stores one. Errors are never cached.
func (c *CachedClient) Observe(ctx context.Context, g domain.Geo) (domain.WeatherObservation, error) {
	key := cacheKey(g)
	if obs, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
		return obs, nil
	}
	c.metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()

	obs, err := c.inner.Observe(ctx, g)
	if err != nil {
		return domain.WeatherObservation{}, err
	}
	c.cache.Put(key, obs)
	return obs, nil
}

// cacheKey rounds to two decimal places, roughly a kilometer, matching the
// precision cluster identifiers use.
func cacheKey(g domain.Geo) string {
	return fmt.Sprintf("%.2f_%.2f", g.Lat, g.Lon)
}
