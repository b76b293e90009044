// Package snapshot implements the staleness-gated pull-through cache in front
// of the provider gateways. Reads serve the stored snapshot while it is
// fresh; a stale or missing snapshot triggers one provider fetch shared by
// all concurrent callers.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

// Store persists snapshots.
type Store interface {
	Insert(ctx context.Context, snap *domain.Snapshot) error
	Latest(ctx context.Context, family domain.Family, clusterID string) (*domain.Snapshot, error)
}

// FetchFunc performs one provider fetch for a (family, cluster) key and
// returns the new snapshot payload with Family, ClusterID, and payload fields
// set. FetchedAt and ID are filled in by the service.
type FetchFunc func(ctx context.Context) (*domain.Snapshot, error)

// Service coordinates snapshot reads and refreshes.
type Service struct {
	store   Store
	ttl     time.Duration
	flights singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a snapshot service with the given staleness window.
func NewService(store Store, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, ttl: ttl, metrics: metrics, logger: logger}
}

// ShouldRefresh reports whether the snapshot is missing or older than the
// staleness window.
func (s *Service) ShouldRefresh(snap *domain.Snapshot) bool {
	return snap == nil || clock.Since(snap.FetchedAt) >= s.ttl
}

// GetOrRefresh returns the current snapshot for the key, fetching from the
// provider when the stored one is stale or missing. Concurrent callers for
// the same key share a single fetch. A failed fetch degrades to the previous
// snapshot when one exists, or to an empty snapshot otherwise; the provider
// error is never surfaced to readers.
func (s *Service) GetOrRefresh(ctx context.Context, family domain.Family, clusterID string, fetch FetchFunc) (*domain.Snapshot, error) {
	current, err := s.store.Latest(ctx, family, clusterID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return nil, err
	}

	if !s.ShouldRefresh(current) {
		s.metrics.SnapshotHits.WithLabelValues(string(family), "fresh").Inc()
		return current, nil
	}
	s.metrics.SnapshotHits.WithLabelValues(string(family), "stale").Inc()

	key := string(family) + "/" + clusterID
	result, err, _ := s.flights.Do(key, func() (any, error) {
		return s.refresh(ctx, family, clusterID, fetch)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Snapshot), nil
}

// Refresh forces a refresh attempt for the key, sharing the flight with any
// concurrent GetOrRefresh. The staleness check still applies inside the
// flight, so refreshing a fresh snapshot is a no-op read.
func (s *Service) Refresh(ctx context.Context, family domain.Family, clusterID string, fetch FetchFunc) (*domain.Snapshot, error) {
	key := string(family) + "/" + clusterID
	result, err, _ := s.flights.Do(key, func() (any, error) {
		return s.refresh(ctx, family, clusterID, fetch)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Snapshot), nil
}

// refresh runs inside the flight. The staleness check repeats here so callers
// that queued behind a completed refresh reuse its result instead of fetching
// again.
func (s *Service) refresh(ctx context.Context, family domain.Family, clusterID string, fetch FetchFunc) (*domain.Snapshot, error) {
	current, err := s.store.Latest(ctx, family, clusterID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return nil, err
	}
	if !s.ShouldRefresh(current) {
		return current, nil
	}

	fresh, fetchErr := fetch(ctx)
	if fetchErr != nil {
		s.logger.Warn("provider fetch failed, serving previous snapshot",
			"family", family, "cluster_id", clusterID, "error", fetchErr)
		if current != nil {
			s.metrics.SnapshotRefreshes.WithLabelValues(string(family), "fallback").Inc()
			return current, nil
		}
		s.metrics.SnapshotRefreshes.WithLabelValues(string(family), "empty").Inc()
		return &domain.Snapshot{
			Family:    family,
			ClusterID: clusterID,
			FetchedAt: clock.Now().UTC(),
		}, nil
	}

	fresh.Family = family
	fresh.ClusterID = clusterID
	fresh.FetchedAt = clock.Now().UTC()
	if err := s.store.Insert(ctx, fresh); err != nil {
		// The fetch succeeded; serve it even if persistence failed.
		s.logger.Error("persist snapshot failed", "family", family, "cluster_id", clusterID, "error", err)
	}
	s.metrics.SnapshotRefreshes.WithLabelValues(string(family), "refreshed").Inc()
	return fresh, nil
}
