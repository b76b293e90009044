package alerting

import (
	"context"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

func (s *Service) tsunamiData(ctx context.Context, sub domain.Subscriber) (*UserHazardData, error) {
	snap, err := s.deps.Snapshots.GetOrRefresh(ctx, domain.FamilyTsunami, "", s.fetchTsunamis)
	if err != nil {
		return nil, err
	}

	events := domain.RelevantEvents(snap.Events, sub.Geo, domain.TsunamiMaxDistanceKm)
	s.deps.Writer.WriteEventAlerts(ctx, sub, events)

	return &UserHazardData{Subscriber: sub, Events: events}, nil
}

func (s *Service) fetchTsunamis(ctx context.Context) (*domain.Snapshot, error) {
	events, err := s.deps.Tsunamis.ActiveTsunamis(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{Events: events}, nil
}
