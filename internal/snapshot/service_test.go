package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

type memStore struct {
	mu    sync.Mutex
	snaps map[string]*domain.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*domain.Snapshot)}
}

func (m *memStore) key(family domain.Family, clusterID string) string {
	return string(family) + "/" + clusterID
}

func (m *memStore) Insert(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[m.key(snap.Family, snap.ClusterID)] = snap
	return nil
}

func (m *memStore) Latest(_ context.Context, family domain.Family, clusterID string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[m.key(family, clusterID)]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return snap, nil
}

func newService(store Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, 24*time.Hour, observability.NewMetricsForTesting(), logger)
}

func TestShouldRefresh(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	defer SetClock(nil)

	svc := newService(newMemStore())

	t.Run("missing snapshot", func(t *testing.T) {
		assert.True(t, svc.ShouldRefresh(nil))
	})

	t.Run("fresh snapshot", func(t *testing.T) {
		snap := &domain.Snapshot{FetchedAt: fake.Now().Add(-23 * time.Hour)}
		assert.False(t, svc.ShouldRefresh(snap))
	})

	t.Run("stale snapshot", func(t *testing.T) {
		snap := &domain.Snapshot{FetchedAt: fake.Now().Add(-24 * time.Hour)}
		assert.True(t, svc.ShouldRefresh(snap))
	})
}

func TestGetOrRefresh(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	defer SetClock(nil)

	event := domain.HazardEvent{ID: "us7000abcd", Family: domain.FamilyQuake, Magnitude: 6.1}

	t.Run("fetches when missing and persists", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)
		var calls int
		fetch := func(context.Context) (*domain.Snapshot, error) {
			calls++
			return &domain.Snapshot{Events: []domain.HazardEvent{event}}, nil
		}

		snap, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
		require.NoError(t, err)
		require.Len(t, snap.Events, 1)
		assert.Equal(t, "us7000abcd", snap.Events[0].ID)
		assert.Equal(t, fake.Now().UTC(), snap.FetchedAt)
		assert.Equal(t, 1, calls)

		stored, err := store.Latest(context.Background(), domain.FamilyQuake, "")
		require.NoError(t, err)
		assert.Equal(t, snap.ID, stored.ID)
	})

	t.Run("serves fresh snapshot without fetching", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)
		var calls int
		fetch := func(context.Context) (*domain.Snapshot, error) {
			calls++
			return &domain.Snapshot{Events: []domain.HazardEvent{event}}, nil
		}

		_, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
		require.NoError(t, err)

		fake.Advance(23 * time.Hour)

		_, err = svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("refetches after the window", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)
		var calls int
		fetch := func(context.Context) (*domain.Snapshot, error) {
			calls++
			return &domain.Snapshot{Events: []domain.HazardEvent{event}}, nil
		}

		_, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
		require.NoError(t, err)

		fake.Advance(25 * time.Hour)

		_, err = svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("fetch failure falls back to previous snapshot", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)

		first, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", func(context.Context) (*domain.Snapshot, error) {
			return &domain.Snapshot{Events: []domain.HazardEvent{event}}, nil
		})
		require.NoError(t, err)

		fake.Advance(25 * time.Hour)

		snap, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", func(context.Context) (*domain.Snapshot, error) {
			return nil, errors.New("provider down")
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, snap.ID)
	})

	t.Run("fetch failure with no history yields empty snapshot", func(t *testing.T) {
		svc := newService(newMemStore())

		snap, err := svc.GetOrRefresh(context.Background(), domain.FamilyTsunami, "", func(context.Context) (*domain.Snapshot, error) {
			return nil, errors.New("provider down")
		})
		require.NoError(t, err)
		assert.Empty(t, snap.Events)
		assert.Equal(t, domain.FamilyTsunami, snap.Family)
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)

		var (
			mu    sync.Mutex
			calls int
		)
		started := make(chan struct{})
		release := make(chan struct{})
		fetch := func(context.Context) (*domain.Snapshot, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				close(started)
				<-release
			}
			return &domain.Snapshot{Events: []domain.HazardEvent{event}}, nil
		}

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				snap, err := svc.GetOrRefresh(context.Background(), domain.FamilyQuake, "", fetch)
				assert.NoError(t, err)
				assert.NotNil(t, snap)
			}()
		}

		<-started
		// Give the remaining callers time to queue behind the flight.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, 1, calls)
	})

	t.Run("distinct cluster keys fetch independently", func(t *testing.T) {
		store := newMemStore()
		svc := newService(store)
		var calls int
		fetch := func(context.Context) (*domain.Snapshot, error) {
			calls++
			return &domain.Snapshot{Daily: &domain.DischargeSeries{}}, nil
		}

		_, err := svc.GetOrRefresh(context.Background(), domain.FamilyFlood, "flood_cluster_33.68_73.05", fetch)
		require.NoError(t, err)
		_, err = svc.GetOrRefresh(context.Background(), domain.FamilyFlood, "flood_cluster_24.86_67.01", fetch)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}
