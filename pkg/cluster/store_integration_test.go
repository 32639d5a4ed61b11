package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres spins up a throwaway Postgres container with the
// clusters table and a small centroid fixture.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("civicpulse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestStore_LoadCentroids(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	dsn := startPostgres(t)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.pool.Exec(ctx, `
		CREATE TABLE clusters (
			cluster_id        INT NOT NULL,
			level             INT NOT NULL,
			parent_cluster_id INT,
			label             TEXT,
			centroid          TEXT
		)`)
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, `
		INSERT INTO clusters (cluster_id, level, parent_cluster_id, label, centroid) VALUES
		(1, 1, NULL, 'Roads',        '[1, 0, 0]'),
		(2, 1, NULL, 'Parks',        '[0, 1, 0]'),
		(3, 1, NULL, NULL,           NULL),           -- null centroid skipped
		(10, 2, 1,   'Potholes',     '[0.9, 0.1, 0]'),
		(20, 2, 2,   'Playgrounds',  '[0, 0.9, 0.1]')`)
	require.NoError(t, err)

	level1, level2, err := store.LoadCentroids(ctx)
	require.NoError(t, err)

	require.Len(t, level1, 2)
	assert.Equal(t, 1, level1[0].ID)
	assert.Equal(t, "Roads", level1[0].Label)
	assert.Equal(t, []float32{1, 0, 0}, level1[0].Vector)

	require.Len(t, level2, 2)
	assert.Equal(t, 1, level2[0].Parent)
	assert.Equal(t, 10, level2[0].ID)

	idx, err := NewIndex(level1, level2)
	require.NoError(t, err)

	pred, err := idx.Predict([]float32{0.95, 0.05, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pred.ParentID)
	assert.Equal(t, 10, pred.ChildID)
}
