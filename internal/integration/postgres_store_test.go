//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

// startPostgres runs a postgres container and returns a connection string.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "hazard",
			"POSTGRES_PASSWORD": "hazard",
			"POSTGRES_DB":       "hazard_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	testcontainers.CleanupContainer(t, container)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://hazard:hazard@" + host + ":" + port.Port() + "/hazard_test?sslmode=disable"
}

func TestPostgresStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := postgres.New(ctx, startPostgres(ctx, t), discardLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	t.Run("snapshots latest by fetched_at", func(t *testing.T) {
		older := &domain.Snapshot{
			Family:    domain.FamilyQuake,
			FetchedAt: time.Now().UTC().Add(-48 * time.Hour),
			Events:    []domain.HazardEvent{{ID: "old", Family: domain.FamilyQuake}},
		}
		newer := &domain.Snapshot{
			Family:       domain.FamilyQuake,
			FetchedAt:    time.Now().UTC(),
			MinMagnitude: 4.0,
			Events:       []domain.HazardEvent{{ID: "new", Family: domain.FamilyQuake, Magnitude: 6.2}},
		}
		require.NoError(t, store.Snapshots.Insert(ctx, older))
		require.NoError(t, store.Snapshots.Insert(ctx, newer))

		got, err := store.Snapshots.Latest(ctx, domain.FamilyQuake, "")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
		require.Len(t, got.Events, 1)
		assert.Equal(t, "new", got.Events[0].ID)
		assert.Equal(t, 4.0, got.MinMagnitude)

		_, err = store.Snapshots.Latest(ctx, domain.FamilyTsunami, "")
		assert.ErrorIs(t, err, postgres.ErrNotFound)
	})

	t.Run("cluster membership", func(t *testing.T) {
		member := uuid.New()
		now := time.Now().UTC().Truncate(time.Microsecond)
		cluster := &domain.Cluster{
			ID:        "flood_cluster_33.68_73.05",
			Family:    domain.FamilyFlood,
			Center:    domain.Geo{Lat: 33.68, Lon: 73.05},
			MemberIDs: []uuid.UUID{member},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.Clusters.Save(ctx, cluster))

		got, err := store.Clusters.ForUser(ctx, domain.FamilyFlood, member)
		require.NoError(t, err)
		assert.Equal(t, cluster.ID, got.ID)

		// AddMember is idempotent.
		joiner := uuid.New()
		require.NoError(t, store.Clusters.AddMember(ctx, cluster.ID, joiner))
		require.NoError(t, store.Clusters.AddMember(ctx, cluster.ID, joiner))

		got, err = store.Clusters.ForUser(ctx, domain.FamilyFlood, joiner)
		require.NoError(t, err)
		assert.Len(t, got.MemberIDs, 2)

		_, err = store.Clusters.ForUser(ctx, domain.FamilyFlood, uuid.New())
		assert.ErrorIs(t, err, postgres.ErrNotFound)
	})

	t.Run("alert upsert inserts once", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now().UTC()
		alert := &domain.Alert{
			UserID:    userID,
			Family:    domain.FamilyQuake,
			HazardID:  "us7000abcd",
			Level:     domain.LevelWarning,
			Geo:       domain.Geo{Lat: 34, Lon: 73},
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		inserted, err := store.Alerts.Upsert(ctx, alert)
		require.NoError(t, err)
		assert.True(t, inserted)
		firstID := alert.ID

		// Same key again: update in place, same row id, no insert signal.
		repeat := *alert
		repeat.ID = uuid.Nil
		repeat.Level = domain.LevelError
		inserted, err = store.Alerts.Upsert(ctx, &repeat)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, firstID, repeat.ID)

		active, err := store.Alerts.ListActiveForUser(ctx, userID, domain.FamilyQuake)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, domain.LevelError, active[0].Level)
	})

	t.Run("flood state replace", func(t *testing.T) {
		st := &domain.AlertThresholdState{
			ClusterID:      "flood_cluster_33.68_73.05",
			AvgDischarge:   1000,
			AlertThreshold: 1500,
			AlertDays:      []domain.AlertDay{{Date: "2026-08-29", Discharge: 1800, Tier: domain.TierModerate}},
			HighestTier:    domain.TierModerate,
			UpdatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, store.FloodState.Replace(ctx, st))

		st.AvgDischarge = 1200
		st.AlertDays = nil
		st.HighestTier = ""
		require.NoError(t, store.FloodState.Replace(ctx, st))

		got, err := store.FloodState.Get(ctx, st.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, 1200.0, got.AvgDischarge)
		assert.Empty(t, got.AlertDays)
	})

	t.Run("notification status forward only", func(t *testing.T) {
		now := time.Now().UTC()
		n := &domain.Notification{
			AlertID:   uuid.New(),
			UserID:    uuid.New(),
			Family:    domain.FamilyFlood,
			Status:    domain.NotificationSent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.Notifications.Insert(ctx, n))

		require.NoError(t, store.Notifications.UpdateStatus(ctx, n.ID, domain.NotificationRead))

		// Backward move is rejected.
		err := store.Notifications.UpdateStatus(ctx, n.ID, domain.NotificationDelivered)
		assert.ErrorIs(t, err, postgres.ErrNotFound)

		got, err := store.Notifications.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationRead, got.Status)
	})

	t.Run("subscriber upsert and list", func(t *testing.T) {
		userID := uuid.New()
		sub := domain.Subscriber{UserID: userID, Geo: domain.Geo{Lat: 24.86, Lon: 67.01}}
		require.NoError(t, store.Subscribers.Upsert(ctx, domain.FamilyWeather, sub))

		sub.Geo = domain.Geo{Lat: 24.90, Lon: 67.10}
		require.NoError(t, store.Subscribers.Upsert(ctx, domain.FamilyWeather, sub))

		got, err := store.Subscribers.Get(ctx, domain.FamilyWeather, userID)
		require.NoError(t, err)
		assert.Equal(t, 24.90, got.Geo.Lat)

		subs, err := store.Subscribers.ListByFamily(ctx, domain.FamilyWeather)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})
}
