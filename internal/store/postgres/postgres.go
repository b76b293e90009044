// Package postgres persists snapshots, clusters, alerts, notifications, and
// flood threshold state in PostgreSQL via pgx connection pools.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories sharing one connection pool.
type Store struct {
	Pool          *pgxpool.Pool
	Snapshots     *SnapshotRepo
	Clusters      *ClusterRepo
	Alerts        *AlertRepo
	FloodState    *FloodStateRepo
	Subscribers   *SubscriberRepo
	Notifications *NotificationRepo
}

// New connects to the database, verifies the connection, and applies the
// schema.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to postgres")

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{
		Pool:          pool,
		Snapshots:     &SnapshotRepo{pool: pool},
		Clusters:      &ClusterRepo{pool: pool},
		Alerts:        &AlertRepo{pool: pool},
		FloodState:    &FloodStateRepo{pool: pool},
		Subscribers:   &SubscriberRepo{pool: pool},
		Notifications: &NotificationRepo{pool: pool},
	}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS snapshots (
			id            uuid PRIMARY KEY,
			family        text NOT NULL,
			cluster_id    text NOT NULL DEFAULT '',
			fetched_at    timestamptz NOT NULL,
			min_magnitude double precision NOT NULL DEFAULT 0,
			payload       jsonb NOT NULL
		);
		CREATE INDEX IF NOT EXISTS snapshots_family_cluster_fetched_idx
			ON snapshots (family, cluster_id, fetched_at DESC);

		CREATE TABLE IF NOT EXISTS clusters (
			id         text PRIMARY KEY,
			family     text NOT NULL,
			center_lat double precision NOT NULL,
			center_lon double precision NOT NULL,
			member_ids uuid[] NOT NULL DEFAULT '{}',
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS clusters_family_idx ON clusters (family);

		CREATE TABLE IF NOT EXISTS alerts (
			id         uuid PRIMARY KEY,
			user_id    uuid NOT NULL,
			family     text NOT NULL,
			hazard_id  text NOT NULL,
			cluster_id text NOT NULL DEFAULT '',
			level      text NOT NULL DEFAULT '',
			tier       text NOT NULL DEFAULT '',
			lat        double precision NOT NULL,
			lon        double precision NOT NULL,
			is_active  boolean NOT NULL DEFAULT true,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL,
			UNIQUE (user_id, family, hazard_id)
		);
		CREATE INDEX IF NOT EXISTS alerts_user_family_idx ON alerts (user_id, family);

		CREATE TABLE IF NOT EXISTS notifications (
			id         uuid PRIMARY KEY,
			alert_id   uuid NOT NULL,
			user_id    uuid NOT NULL,
			family     text NOT NULL,
			status     text NOT NULL,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id);

		CREATE TABLE IF NOT EXISTS flood_threshold_state (
			cluster_id      text PRIMARY KEY,
			avg_discharge   double precision NOT NULL,
			alert_threshold double precision NOT NULL,
			alert_days      jsonb NOT NULL DEFAULT '[]',
			highest_tier    text NOT NULL DEFAULT '',
			updated_at      timestamptz NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_locations (
			user_id uuid NOT NULL,
			family  text NOT NULL,
			lat     double precision NOT NULL,
			lon     double precision NOT NULL,
			PRIMARY KEY (user_id, family)
		);
	`
	_, err := pool.Exec(ctx, schema)
	return err
}
