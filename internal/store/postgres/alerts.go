package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

// AlertRepo stores classified alerts. Rows are keyed logically by
// (user_id, family, hazard_id); re-classifying an unchanged hazard updates in
// place instead of inserting a duplicate.
type AlertRepo struct {
	pool *pgxpool.Pool
}

// Upsert writes the alert and reports whether a new row was inserted, which
// is the signal to emit a notification. xmax = 0 only holds for rows created
// by this statement.
func (r *AlertRepo) Upsert(ctx context.Context, a *domain.Alert) (inserted bool, err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	const query = `
		INSERT INTO alerts (id, user_id, family, hazard_id, cluster_id, level, tier,
			lat, lon, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, family, hazard_id) DO UPDATE SET
			cluster_id = EXCLUDED.cluster_id,
			level      = EXCLUDED.level,
			tier       = EXCLUDED.tier,
			lat        = EXCLUDED.lat,
			lon        = EXCLUDED.lon,
			is_active  = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS inserted
	`
	err = r.pool.QueryRow(ctx, query,
		a.ID, a.UserID, a.Family, a.HazardID, a.ClusterID, a.Level, a.Tier,
		a.Geo.Lat, a.Geo.Lon, a.IsActive, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert alert: %w", err)
	}
	return inserted, nil
}

// ListActiveForUser returns the user's active alerts for a family, newest
// first.
func (r *AlertRepo) ListActiveForUser(ctx context.Context, userID uuid.UUID, family domain.Family) ([]domain.Alert, error) {
	const query = `
		SELECT id, user_id, family, hazard_id, cluster_id, level, tier,
			lat, lon, is_active, created_at, updated_at
		FROM alerts
		WHERE user_id = $1 AND family = $2 AND is_active
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, family)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Family, &a.HazardID, &a.ClusterID,
			&a.Level, &a.Tier, &a.Geo.Lat, &a.Geo.Lon, &a.IsActive,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// NotificationRepo stores notification rows derived from freshly inserted
// alerts.
type NotificationRepo struct {
	pool *pgxpool.Pool
}

// Insert creates a notification row. A zero ID is assigned.
func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	const query = `
		INSERT INTO notifications (id, alert_id, user_id, family, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		n.ID, n.AlertID, n.UserID, n.Family, n.Status, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UpdateStatus advances a notification's delivery status. Backward moves are
// rejected in SQL by ranking the states.
func (r *NotificationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	const query = `
		UPDATE notifications
		SET status = $2, updated_at = now()
		WHERE id = $1
		  AND array_position(ARRAY['Sent','Delivered','Read'], $2::text)
		    > array_position(ARRAY['Sent','Delivered','Read'], status)
	`
	cmd, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one notification by id.
func (r *NotificationRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	const query = `
		SELECT id, alert_id, user_id, family, status, created_at, updated_at
		FROM notifications
		WHERE id = $1
	`
	var n domain.Notification
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.AlertID, &n.UserID, &n.Family, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return &n, nil
}
