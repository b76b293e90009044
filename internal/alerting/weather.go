package alerting

import (
	"context"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

func (s *Service) weatherData(ctx context.Context, sub domain.Subscriber) (*UserHazardData, error) {
	if s.deps.Weather == nil {
		return nil, ErrWeatherDisabled
	}

	cluster, err := s.clusterForUser(ctx, domain.FamilyWeather, sub, domain.WeatherClusterRadiusKm,
		s.fetchWeatherFor(sub.Geo))
	if err != nil {
		return nil, err
	}

	snap, err := s.deps.Snapshots.GetOrRefresh(ctx, domain.FamilyWeather, cluster.ID,
		s.fetchWeatherFor(cluster.Center))
	if err != nil {
		return nil, err
	}

	data := &UserHazardData{Subscriber: sub}
	if snap.Weather == nil {
		return data, nil
	}
	data.Weather = snap.Weather

	assessment := domain.EvaluateHeatwave(*snap.Weather)
	data.Heatwave = &assessment
	if assessment.Alert {
		s.deps.Writer.WriteClusterAlert(ctx, sub.UserID, domain.FamilyWeather,
			cluster.ID, heatwaveTier(assessment), cluster.Center)
	}
	return data, nil
}

// refreshWeatherClusters refreshes each weather cluster's conditions, one
// provider call per cluster, and alerts every member of clusters in a
// heatwave.
func (s *Service) refreshWeatherClusters(ctx context.Context) (int, error) {
	if s.deps.Weather == nil {
		return 0, ErrWeatherDisabled
	}

	clusters, err := s.deps.Clusters.ListByFamily(ctx, domain.FamilyWeather)
	if err != nil {
		return 0, err
	}
	if len(clusters) == 0 {
		clusters, err = s.seedClusters(ctx, domain.FamilyWeather, domain.WeatherClusterRadiusKm)
		if err != nil {
			return 0, err
		}
	}
	s.deps.Metrics.ClustersTracked.WithLabelValues(string(domain.FamilyWeather)).Set(float64(len(clusters)))

	refreshed := 0
	for i := range clusters {
		c := clusters[i]
		snap, err := s.deps.Snapshots.Refresh(ctx, domain.FamilyWeather, c.ID, s.fetchWeatherFor(c.Center))
		if err != nil {
			s.deps.Logger.Warn("weather cluster refresh failed", "cluster_id", c.ID, "error", err)
			continue
		}
		if snap.Weather != nil {
			assessment := domain.EvaluateHeatwave(*snap.Weather)
			if assessment.Alert {
				for _, userID := range c.MemberIDs {
					s.deps.Writer.WriteClusterAlert(ctx, userID, domain.FamilyWeather,
						c.ID, heatwaveTier(assessment), c.Center)
				}
			}
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *Service) fetchWeatherFor(center domain.Geo) func(context.Context) (*domain.Snapshot, error) {
	return func(ctx context.Context) (*domain.Snapshot, error) {
		obs, err := s.deps.Weather.Observe(ctx, center)
		if err != nil {
			return nil, err
		}
		return &domain.Snapshot{Weather: &obs}, nil
	}
}

// heatwaveTier grades a heatwave alert: High when the current temperature is
// already over the cutoff, Moderate when only forecast days are.
func heatwaveTier(a domain.HeatwaveAssessment) domain.Tier {
	if a.CurrentC > domain.HeatwaveThresholdC {
		return domain.TierHigh
	}
	return domain.TierModerate
}
