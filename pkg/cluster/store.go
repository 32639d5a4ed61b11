package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads cluster centroids and labels from Postgres. The clusters
// table is produced by the offline clustering jobs and is read-only here.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a centroid store to the database at dsn.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to cluster database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging cluster database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// LoadCentroids fetches level-1 and level-2 centroids. Rows with null
// centroids are skipped; orphan filtering happens in NewIndex.
func (s *Store) LoadCentroids(ctx context.Context) (level1, level2 []Centroid, err error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cluster_id, COALESCE(label, ''), centroid::text
		FROM clusters
		WHERE level = 1 AND centroid IS NOT NULL
		ORDER BY cluster_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying level-1 centroids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Centroid
		var raw string
		if err := rows.Scan(&c.ID, &c.Label, &raw); err != nil {
			return nil, nil, fmt.Errorf("scanning level-1 centroid: %w", err)
		}
		if c.Vector, err = ParseVector(raw); err != nil {
			slog.Warn("Skipping unparseable level-1 centroid", "cluster_id", c.ID, "error", err)
			continue
		}
		level1 = append(level1, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading level-1 centroids: %w", err)
	}

	rows2, err := s.pool.Query(ctx, `
		SELECT parent_cluster_id, cluster_id, COALESCE(label, ''), centroid::text
		FROM clusters
		WHERE level = 2 AND centroid IS NOT NULL
		ORDER BY parent_cluster_id, cluster_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying level-2 centroids: %w", err)
	}
	defer rows2.Close()

	for rows2.Next() {
		var c Centroid
		var raw string
		if err := rows2.Scan(&c.Parent, &c.ID, &c.Label, &raw); err != nil {
			return nil, nil, fmt.Errorf("scanning level-2 centroid: %w", err)
		}
		if c.Vector, err = ParseVector(raw); err != nil {
			slog.Warn("Skipping unparseable level-2 centroid", "cluster_id", c.ID, "error", err)
			continue
		}
		level2 = append(level2, c)
	}
	if err := rows2.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading level-2 centroids: %w", err)
	}

	slog.Info("Loaded cluster centroids", "level1", len(level1), "level2", len(level2))
	return level1, level2, nil
}

// ParseVector parses a pgvector-style text value "[0.1,0.2,...]" into a
// float32 slice.
func ParseVector(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil, fmt.Errorf("empty vector")
	}

	parts := strings.Split(raw, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
