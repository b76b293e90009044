package alerting

import (
	"context"
	"time"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

// quakeWindow is the rolling catalog window requested from the feed.
const quakeWindow = 24 * time.Hour

func (s *Service) quakeData(ctx context.Context, sub domain.Subscriber) (*UserHazardData, error) {
	snap, err := s.deps.Snapshots.GetOrRefresh(ctx, domain.FamilyQuake, "", s.fetchQuakes)
	if err != nil {
		return nil, err
	}

	events := domain.RelevantEvents(snap.Events, sub.Geo, domain.QuakeMaxDistanceKm)
	s.deps.Writer.WriteEventAlerts(ctx, sub, events)

	return &UserHazardData{Subscriber: sub, Events: events}, nil
}

func (s *Service) fetchQuakes(ctx context.Context) (*domain.Snapshot, error) {
	events, err := s.deps.Quakes.RecentQuakes(ctx, s.deps.QuakeMinMagnitude, quakeWindow)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		MinMagnitude: s.deps.QuakeMinMagnitude,
		Events:       events,
	}, nil
}
