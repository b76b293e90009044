package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

// FloodStateRepo stores the per-cluster flood threshold computation. Each
// recomputation fully replaces the row.
type FloodStateRepo struct {
	pool *pgxpool.Pool
}

// Replace writes the threshold state, overwriting any previous row for the
// cluster.
func (r *FloodStateRepo) Replace(ctx context.Context, st *domain.AlertThresholdState) error {
	days, err := json.Marshal(st.AlertDays)
	if err != nil {
		return fmt.Errorf("marshal alert days: %w", err)
	}

	const query = `
		INSERT INTO flood_threshold_state
			(cluster_id, avg_discharge, alert_threshold, alert_days, highest_tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cluster_id) DO UPDATE SET
			avg_discharge   = EXCLUDED.avg_discharge,
			alert_threshold = EXCLUDED.alert_threshold,
			alert_days      = EXCLUDED.alert_days,
			highest_tier    = EXCLUDED.highest_tier,
			updated_at      = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		st.ClusterID, st.AvgDischarge, st.AlertThreshold, days, st.HighestTier, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace flood state: %w", err)
	}
	return nil
}

// Get returns the threshold state for a cluster, or ErrNotFound.
func (r *FloodStateRepo) Get(ctx context.Context, clusterID string) (*domain.AlertThresholdState, error) {
	const query = `
		SELECT cluster_id, avg_discharge, alert_threshold, alert_days, highest_tier, updated_at
		FROM flood_threshold_state
		WHERE cluster_id = $1
	`
	var (
		st  domain.AlertThresholdState
		raw []byte
	)
	err := r.pool.QueryRow(ctx, query, clusterID).Scan(
		&st.ClusterID, &st.AvgDischarge, &st.AlertThreshold, &raw, &st.HighestTier, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query flood state: %w", err)
	}

	if err := json.Unmarshal(raw, &st.AlertDays); err != nil {
		return nil, fmt.Errorf("unmarshal alert days: %w", err)
	}
	return &st, nil
}
