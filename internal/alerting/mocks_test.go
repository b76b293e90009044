package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/snapshot"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

type mockQuakeGateway struct {
	events []domain.HazardEvent
	err    error
	calls  int
}

func (m *mockQuakeGateway) RecentQuakes(_ context.Context, _ float64, _ time.Duration) ([]domain.HazardEvent, error) {
	m.calls++
	return m.events, m.err
}

type mockTsunamiGateway struct {
	events []domain.HazardEvent
	err    error
}

func (m *mockTsunamiGateway) ActiveTsunamis(_ context.Context) ([]domain.HazardEvent, error) {
	return m.events, m.err
}

type mockFloodGateway struct {
	series  []domain.DischargeSeries
	err     error
	calls   int
	centers [][]domain.Geo
}

func (m *mockFloodGateway) DischargeForecast(_ context.Context, centers []domain.Geo) ([]domain.DischargeSeries, error) {
	m.calls++
	m.centers = append(m.centers, centers)
	if m.err != nil {
		return nil, m.err
	}
	if m.series != nil {
		return m.series, nil
	}
	out := make([]domain.DischargeSeries, len(centers))
	return out, nil
}

type mockWeatherGateway struct {
	obs   domain.WeatherObservation
	err   error
	calls int
}

func (m *mockWeatherGateway) Observe(_ context.Context, _ domain.Geo) (domain.WeatherObservation, error) {
	m.calls++
	return m.obs, m.err
}

// fakeSnapshots runs fetches straight through without staleness gating,
// keeping service tests independent of the snapshot store.
type fakeSnapshots struct{}

func (fakeSnapshots) GetOrRefresh(ctx context.Context, family domain.Family, clusterID string, fetch snapshot.FetchFunc) (*domain.Snapshot, error) {
	return run(ctx, family, clusterID, fetch)
}

func (fakeSnapshots) Refresh(ctx context.Context, family domain.Family, clusterID string, fetch snapshot.FetchFunc) (*domain.Snapshot, error) {
	return run(ctx, family, clusterID, fetch)
}

func run(ctx context.Context, family domain.Family, clusterID string, fetch snapshot.FetchFunc) (*domain.Snapshot, error) {
	snap, err := fetch(ctx)
	if err != nil {
		// Fail-soft contract: empty snapshot, no error.
		return &domain.Snapshot{Family: family, ClusterID: clusterID}, nil
	}
	snap.Family = family
	snap.ClusterID = clusterID
	return snap, nil
}

type memClusterStore struct {
	mu       sync.Mutex
	clusters []domain.Cluster
}

func (m *memClusterStore) ListByFamily(_ context.Context, family domain.Family) ([]domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Cluster
	for _, c := range m.clusters {
		if c.Family == family {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClusterStore) ForUser(_ context.Context, family domain.Family, userID uuid.UUID) (*domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.clusters {
		if m.clusters[i].Family == family && m.clusters[i].HasMember(userID) {
			c := m.clusters[i]
			return &c, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (m *memClusterStore) Save(_ context.Context, c *domain.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.clusters {
		if m.clusters[i].ID == c.ID {
			m.clusters[i] = *c
			return nil
		}
	}
	m.clusters = append(m.clusters, *c)
	return nil
}

func (m *memClusterStore) AddMember(_ context.Context, clusterID string, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.clusters {
		if m.clusters[i].ID == clusterID && !m.clusters[i].HasMember(userID) {
			m.clusters[i].MemberIDs = append(m.clusters[i].MemberIDs, userID)
		}
	}
	return nil
}

type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]domain.Alert
	err    error
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]domain.Alert)}
}

func alertKey(a *domain.Alert) string {
	return a.UserID.String() + "/" + string(a.Family) + "/" + a.HazardID
}

func (m *memAlertStore) Upsert(_ context.Context, a *domain.Alert) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := alertKey(a)
	if existing, ok := m.alerts[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		m.alerts[key] = *a
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.alerts[key] = *a
	return true, nil
}

func (m *memAlertStore) ListActiveForUser(_ context.Context, userID uuid.UUID, family domain.Family) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if a.UserID == userID && a.Family == family && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

type memNotificationStore struct {
	mu       sync.Mutex
	inserted []domain.Notification
	err      error
}

func (m *memNotificationStore) Insert(_ context.Context, n *domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, *n)
	return nil
}

type memFloodStateStore struct {
	mu     sync.Mutex
	states map[string]domain.AlertThresholdState
}

func newMemFloodStateStore() *memFloodStateStore {
	return &memFloodStateStore{states: make(map[string]domain.AlertThresholdState)}
}

func (m *memFloodStateStore) Replace(_ context.Context, st *domain.AlertThresholdState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ClusterID] = *st
	return nil
}

func (m *memFloodStateStore) Get(_ context.Context, clusterID string) (*domain.AlertThresholdState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[clusterID]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return &st, nil
}

type memSubscriberStore struct {
	mu   sync.Mutex
	subs map[domain.Family]map[uuid.UUID]domain.Subscriber
}

func newMemSubscriberStore() *memSubscriberStore {
	return &memSubscriberStore{subs: make(map[domain.Family]map[uuid.UUID]domain.Subscriber)}
}

func (m *memSubscriberStore) ListByFamily(_ context.Context, family domain.Family) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs[family] {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSubscriberStore) Get(_ context.Context, family domain.Family, userID uuid.UUID) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[family][userID]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return &s, nil
}

func (m *memSubscriberStore) Upsert(_ context.Context, family domain.Family, sub domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[family] == nil {
		m.subs[family] = make(map[uuid.UUID]domain.Subscriber)
	}
	m.subs[family][sub.UserID] = sub
	return nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.Notification
	err       error
}

func (m *mockPublisher) PublishBatch(_ context.Context, notifications []domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, notifications...)
	return nil
}
