// Package alerting decides which subscribers are affected by current hazard
// data and writes alert and notification records. One evaluator per hazard
// family, all sharing the snapshot store, the cluster registry, and the
// alert writer.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
	"github.com/couchcryptid/hazard-alert-service/internal/snapshot"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrUnknownSubscriber = errors.New("subscriber location not registered")
	ErrInvalidLocation   = errors.New("invalid coordinates")
	ErrWeatherDisabled   = errors.New("weather tracking is disabled")
)

// Provider gateways, one per hazard family.
type QuakeGateway interface {
	RecentQuakes(ctx context.Context, minMagnitude float64, window time.Duration) ([]domain.HazardEvent, error)
}

type TsunamiGateway interface {
	ActiveTsunamis(ctx context.Context) ([]domain.HazardEvent, error)
}

type FloodGateway interface {
	DischargeForecast(ctx context.Context, centers []domain.Geo) ([]domain.DischargeSeries, error)
}

type WeatherGateway interface {
	Observe(ctx context.Context, g domain.Geo) (domain.WeatherObservation, error)
}

// Snapshots is the staleness-gated snapshot store.
type Snapshots interface {
	GetOrRefresh(ctx context.Context, family domain.Family, clusterID string, fetch snapshot.FetchFunc) (*domain.Snapshot, error)
	Refresh(ctx context.Context, family domain.Family, clusterID string, fetch snapshot.FetchFunc) (*domain.Snapshot, error)
}

type ClusterStore interface {
	ListByFamily(ctx context.Context, family domain.Family) ([]domain.Cluster, error)
	ForUser(ctx context.Context, family domain.Family, userID uuid.UUID) (*domain.Cluster, error)
	Save(ctx context.Context, c *domain.Cluster) error
	AddMember(ctx context.Context, clusterID string, userID uuid.UUID) error
}

type AlertStore interface {
	Upsert(ctx context.Context, a *domain.Alert) (inserted bool, err error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID, family domain.Family) ([]domain.Alert, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

type FloodStateStore interface {
	Replace(ctx context.Context, st *domain.AlertThresholdState) error
	Get(ctx context.Context, clusterID string) (*domain.AlertThresholdState, error)
}

type SubscriberStore interface {
	ListByFamily(ctx context.Context, family domain.Family) ([]domain.Subscriber, error)
	Get(ctx context.Context, family domain.Family, userID uuid.UUID) (*domain.Subscriber, error)
	Upsert(ctx context.Context, family domain.Family, sub domain.Subscriber) error
}

// Deps wires a Service. Weather may be nil when the feature is disabled.
type Deps struct {
	Quakes   QuakeGateway
	Tsunamis TsunamiGateway
	Floods   FloodGateway
	Weather  WeatherGateway

	Snapshots   Snapshots
	Clusters    ClusterStore
	Alerts      AlertStore
	FloodState  FloodStateStore
	Subscribers SubscriberStore
	Writer      *Writer

	QuakeMinMagnitude float64
	FloodStateTTL     time.Duration

	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Service is the alerting facade consumed by the HTTP layer and the
// scheduler.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.FloodStateTTL <= 0 {
		deps.FloodStateTTL = 24 * time.Hour
	}
	return &Service{deps: deps}
}

// UserHazardData is the per-family evaluation result for one subscriber.
// Events is set for quake/tsunami, FloodState for flood, Weather and Heatwave
// for weather.
type UserHazardData struct {
	Subscriber domain.Subscriber           `json:"subscriber"`
	Events     []domain.RelevantEvent      `json:"events,omitempty"`
	FloodState *domain.AlertThresholdState `json:"flood_state,omitempty"`
	Alerts     []domain.Alert              `json:"alerts,omitempty"`
	Weather    *domain.WeatherObservation  `json:"weather,omitempty"`
	Heatwave   *domain.HeatwaveAssessment  `json:"heatwave,omitempty"`
}

// GetUserHazardData evaluates the family's current hazard data against the
// subscriber's registered location. When the underlying snapshot is stale
// the call awaits the refresh.
func (s *Service) GetUserHazardData(ctx context.Context, family domain.Family, userID uuid.UUID) (*UserHazardData, error) {
	sub, err := s.deps.Subscribers.Get(ctx, family, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrUnknownSubscriber
		}
		return nil, err
	}
	return s.evaluate(ctx, family, *sub)
}

// CheckLocation evaluates the family against an explicit location, recording
// it as the subscriber's location for subsequent reads.
func (s *Service) CheckLocation(ctx context.Context, family domain.Family, userID uuid.UUID, loc domain.Geo) (*UserHazardData, error) {
	if !loc.Valid() {
		return nil, ErrInvalidLocation
	}
	sub := domain.Subscriber{UserID: userID, Geo: loc}
	if err := s.deps.Subscribers.Upsert(ctx, family, sub); err != nil {
		return nil, err
	}
	return s.evaluate(ctx, family, sub)
}

// TriggerClusterRefresh refreshes every tracked cluster for a continuous
// family and returns the number refreshed. Flood uses one batched provider
// call regardless of cluster count.
func (s *Service) TriggerClusterRefresh(ctx context.Context, family domain.Family) (int, error) {
	switch family {
	case domain.FamilyFlood:
		return s.refreshFloodClusters(ctx)
	case domain.FamilyWeather:
		return s.refreshWeatherClusters(ctx)
	default:
		return 0, fmt.Errorf("family %s is not cluster-tracked", family)
	}
}

func (s *Service) evaluate(ctx context.Context, family domain.Family, sub domain.Subscriber) (*UserHazardData, error) {
	switch family {
	case domain.FamilyQuake:
		return s.quakeData(ctx, sub)
	case domain.FamilyTsunami:
		return s.tsunamiData(ctx, sub)
	case domain.FamilyFlood:
		return s.floodData(ctx, sub)
	case domain.FamilyWeather:
		return s.weatherData(ctx, sub)
	default:
		return nil, fmt.Errorf("unknown family %q", family)
	}
}

// clusterForUser reuses the subscriber's existing cluster, joins the first
// stored cluster whose center is within radius, or forms a singleton and
// performs its initial fetch immediately. First match, not nearest: identity
// depends on storage order.
func (s *Service) clusterForUser(ctx context.Context, family domain.Family, sub domain.Subscriber, radiusKm float64, fetch snapshot.FetchFunc) (*domain.Cluster, error) {
	existing, err := s.deps.Clusters.ForUser(ctx, family, sub.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, postgres.ErrNotFound) {
		return nil, err
	}

	clusters, err := s.deps.Clusters.ListByFamily(ctx, family)
	if err != nil {
		return nil, err
	}
	if i := domain.FirstClusterWithin(clusters, sub.Geo, radiusKm); i >= 0 {
		c := clusters[i]
		if err := s.deps.Clusters.AddMember(ctx, c.ID, sub.UserID); err != nil {
			return nil, err
		}
		c.MemberIDs = append(c.MemberIDs, sub.UserID)
		return &c, nil
	}

	c := domain.NewSingletonCluster(family, sub)
	if err := s.deps.Clusters.Save(ctx, &c); err != nil {
		return nil, err
	}
	s.deps.Metrics.ClustersTracked.WithLabelValues(string(family)).Inc()

	// Initial fetch so the first read is not empty. Fail-soft like any read.
	if _, err := s.deps.Snapshots.GetOrRefresh(ctx, family, c.ID, fetch); err != nil {
		s.deps.Logger.Warn("initial cluster fetch failed", "family", family, "cluster_id", c.ID, "error", err)
	}
	return &c, nil
}
