package alerting

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

func (s *Service) floodData(ctx context.Context, sub domain.Subscriber) (*UserHazardData, error) {
	cluster, err := s.clusterForUser(ctx, domain.FamilyFlood, sub, domain.FloodClusterRadiusKm,
		s.fetchFloodSingle(sub.Geo))
	if err != nil {
		return nil, err
	}

	snap, err := s.deps.Snapshots.GetOrRefresh(ctx, domain.FamilyFlood, cluster.ID,
		s.fetchFloodSingle(cluster.Center))
	if err != nil {
		return nil, err
	}

	state, err := s.floodStateFor(ctx, cluster.ID, snap)
	if err != nil {
		return nil, err
	}

	if state != nil && len(state.AlertDays) > 0 {
		s.deps.Writer.WriteClusterAlert(ctx, sub.UserID, domain.FamilyFlood,
			cluster.ID, state.HighestTier, cluster.Center)
	}

	alerts, err := s.deps.Alerts.ListActiveForUser(ctx, sub.UserID, domain.FamilyFlood)
	if err != nil {
		s.deps.Logger.Warn("list flood alerts failed", "user_id", sub.UserID, "error", err)
	}

	return &UserHazardData{Subscriber: sub, FloodState: state, Alerts: alerts}, nil
}

// floodStateFor returns the stored threshold state, recomputing and fully
// replacing it when missing or older than its own staleness window.
func (s *Service) floodStateFor(ctx context.Context, clusterID string, snap *domain.Snapshot) (*domain.AlertThresholdState, error) {
	state, err := s.deps.FloodState.Get(ctx, clusterID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return nil, err
	}
	if state != nil && clock.Since(state.UpdatedAt) < s.deps.FloodStateTTL {
		return state, nil
	}
	if snap.Daily == nil {
		return state, nil
	}

	fresh := domain.EvaluateDischarge(clusterID, *snap.Daily)
	if err := s.deps.FloodState.Replace(ctx, &fresh); err != nil {
		return nil, fmt.Errorf("replace flood state: %w", err)
	}
	return &fresh, nil
}

// refreshFloodClusters refreshes every flood cluster with one batched
// provider call, recomputes threshold states, and writes member alerts.
func (s *Service) refreshFloodClusters(ctx context.Context) (int, error) {
	clusters, err := s.deps.Clusters.ListByFamily(ctx, domain.FamilyFlood)
	if err != nil {
		return 0, err
	}
	if len(clusters) == 0 {
		clusters, err = s.seedClusters(ctx, domain.FamilyFlood, domain.FloodClusterRadiusKm)
		if err != nil {
			return 0, err
		}
	}
	s.deps.Metrics.ClustersTracked.WithLabelValues(string(domain.FamilyFlood)).Set(float64(len(clusters)))
	if len(clusters) == 0 {
		return 0, nil
	}

	centers := make([]domain.Geo, len(clusters))
	for i := range clusters {
		centers[i] = clusters[i].Center
	}

	// One provider call regardless of cluster count.
	series, err := s.deps.Floods.DischargeForecast(ctx, centers)
	if err != nil {
		return 0, fmt.Errorf("batched discharge forecast: %w", err)
	}
	if len(series) != len(clusters) {
		return 0, fmt.Errorf("discharge series count %d does not match %d clusters", len(series), len(clusters))
	}

	refreshed := 0
	for i := range clusters {
		c := clusters[i]
		daily := series[i]
		snap, err := s.deps.Snapshots.Refresh(ctx, domain.FamilyFlood, c.ID,
			func(context.Context) (*domain.Snapshot, error) {
				return &domain.Snapshot{Daily: &daily}, nil
			})
		if err != nil {
			s.deps.Logger.Warn("flood cluster refresh failed", "cluster_id", c.ID, "error", err)
			continue
		}

		state, err := s.floodStateFor(ctx, c.ID, snap)
		if err != nil {
			s.deps.Logger.Warn("flood state recompute failed", "cluster_id", c.ID, "error", err)
			continue
		}
		if state != nil && len(state.AlertDays) > 0 {
			for _, userID := range c.MemberIDs {
				s.deps.Writer.WriteClusterAlert(ctx, userID, domain.FamilyFlood,
					c.ID, state.HighestTier, c.Center)
			}
		}
		refreshed++
	}
	return refreshed, nil
}

// seedClusters builds the initial cluster set from the subscriber table with
// the greedy single pass and persists it.
func (s *Service) seedClusters(ctx context.Context, family domain.Family, radiusKm float64) ([]domain.Cluster, error) {
	subs, err := s.deps.Subscribers.ListByFamily(ctx, family)
	if err != nil {
		return nil, err
	}
	clusters := domain.BuildClusters(family, subs, radiusKm)
	for i := range clusters {
		if err := s.deps.Clusters.Save(ctx, &clusters[i]); err != nil {
			return nil, fmt.Errorf("save cluster %s: %w", clusters[i].ID, err)
		}
	}
	return clusters, nil
}

// fetchFloodSingle fetches the discharge series for one center through the
// batched endpoint.
func (s *Service) fetchFloodSingle(center domain.Geo) func(context.Context) (*domain.Snapshot, error) {
	return func(ctx context.Context) (*domain.Snapshot, error) {
		series, err := s.deps.Floods.DischargeForecast(ctx, []domain.Geo{center})
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return &domain.Snapshot{}, nil
		}
		return &domain.Snapshot{Daily: &series[0]}, nil
	}
}
