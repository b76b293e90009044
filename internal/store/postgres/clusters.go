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

// ClusterRepo stores subscriber clusters. Membership is append-only and
// cluster centers never move after formation.
type ClusterRepo struct {
	pool *pgxpool.Pool
}

const clusterColumns = `id, family, center_lat, center_lon, member_ids, created_at, updated_at`

// ListByFamily returns every cluster tracked for the family.
func (r *ClusterRepo) ListByFamily(ctx context.Context, family domain.Family) ([]domain.Cluster, error) {
	const query = `SELECT ` + clusterColumns + ` FROM clusters WHERE family = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, family)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	return scanClusters(rows)
}

// ForUser returns the cluster containing the user for the family, or
// ErrNotFound.
func (r *ClusterRepo) ForUser(ctx context.Context, family domain.Family, userID uuid.UUID) (*domain.Cluster, error) {
	const query = `
		SELECT ` + clusterColumns + `
		FROM clusters
		WHERE family = $1 AND member_ids @> ARRAY[$2]::uuid[]
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, family, userID)
	c, err := scanCluster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cluster for user: %w", err)
	}
	return c, nil
}

// Save inserts the cluster or, for an existing id, refreshes membership and
// updated_at. Centers are immutable so conflicts leave them untouched.
func (r *ClusterRepo) Save(ctx context.Context, c *domain.Cluster) error {
	const query = `
		INSERT INTO clusters (id, family, center_lat, center_lon, member_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			member_ids = EXCLUDED.member_ids,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Family, c.Center.Lat, c.Center.Lon, c.MemberIDs, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cluster: %w", err)
	}
	return nil
}

// AddMember appends the user to the cluster unless already present.
func (r *ClusterRepo) AddMember(ctx context.Context, clusterID string, userID uuid.UUID) error {
	const query = `
		UPDATE clusters
		SET member_ids = array_append(member_ids, $2),
		    updated_at = now()
		WHERE id = $1 AND NOT (member_ids @> ARRAY[$2]::uuid[])
	`
	if _, err := r.pool.Exec(ctx, query, clusterID, userID); err != nil {
		return fmt.Errorf("add cluster member: %w", err)
	}
	return nil
}

func scanClusters(rows pgx.Rows) ([]domain.Cluster, error) {
	var clusters []domain.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}

func scanCluster(row pgx.Row) (*domain.Cluster, error) {
	var c domain.Cluster
	err := row.Scan(&c.ID, &c.Family, &c.Center.Lat, &c.Center.Lon,
		&c.MemberIDs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
