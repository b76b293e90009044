package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// SnapshotRepo stores provider fetch results. Rows are append-only; the most
// recent fetched_at per (family, cluster_id) is the current snapshot.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

// snapshotPayload is the jsonb shape; exactly one field is set per family.
type snapshotPayload struct {
	Events  []domain.HazardEvent       `json:"events,omitempty"`
	Daily   *domain.DischargeSeries    `json:"daily,omitempty"`
	Weather *domain.WeatherObservation `json:"weather,omitempty"`
}

// Insert appends a snapshot row. A zero ID is assigned.
func (r *SnapshotRepo) Insert(ctx context.Context, snap *domain.Snapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	payload, err := json.Marshal(snapshotPayload{
		Events:  snap.Events,
		Daily:   snap.Daily,
		Weather: snap.Weather,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}

	const query = `
		INSERT INTO snapshots (id, family, cluster_id, fetched_at, min_magnitude, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		snap.ID, snap.Family, snap.ClusterID, snap.FetchedAt, snap.MinMagnitude, payload)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently fetched snapshot for the key, or
// ErrNotFound when none exists.
func (r *SnapshotRepo) Latest(ctx context.Context, family domain.Family, clusterID string) (*domain.Snapshot, error) {
	const query = `
		SELECT id, family, cluster_id, fetched_at, min_magnitude, payload
		FROM snapshots
		WHERE family = $1 AND cluster_id = $2
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	var (
		snap domain.Snapshot
		raw  []byte
	)
	err := r.pool.QueryRow(ctx, query, family, clusterID).Scan(
		&snap.ID, &snap.Family, &snap.ClusterID, &snap.FetchedAt, &snap.MinMagnitude, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot payload: %w", err)
	}
	snap.Events = payload.Events
	snap.Daily = payload.Daily
	snap.Weather = payload.Weather
	return &snap, nil
}
