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

// SubscriberRepo reads user locations per hazard family. The table is owned
// by the profile subsystem; this service only reads and upserts on behalf of
// explicit location checks.
type SubscriberRepo struct {
	pool *pgxpool.Pool
}

// ListByFamily returns every subscriber location registered for the family.
func (r *SubscriberRepo) ListByFamily(ctx context.Context, family domain.Family) ([]domain.Subscriber, error) {
	const query = `SELECT user_id, lat, lon FROM user_locations WHERE family = $1`

	rows, err := r.pool.Query(ctx, query, family)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.UserID, &s.Geo.Lat, &s.Geo.Lon); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}

// Get returns one subscriber's location for the family, or ErrNotFound.
func (r *SubscriberRepo) Get(ctx context.Context, family domain.Family, userID uuid.UUID) (*domain.Subscriber, error) {
	const query = `SELECT user_id, lat, lon FROM user_locations WHERE family = $1 AND user_id = $2`

	var s domain.Subscriber
	err := r.pool.QueryRow(ctx, query, family, userID).Scan(&s.UserID, &s.Geo.Lat, &s.Geo.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query subscriber: %w", err)
	}
	return &s, nil
}

// Upsert records a subscriber location, replacing any previous one for the
// family.
func (r *SubscriberRepo) Upsert(ctx context.Context, family domain.Family, sub domain.Subscriber) error {
	const query = `
		INSERT INTO user_locations (user_id, family, lat, lon)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, family) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon
	`
	_, err := r.pool.Exec(ctx, query, sub.UserID, family, sub.Geo.Lat, sub.Geo.Lon)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}
