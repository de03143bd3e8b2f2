package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/memory/adapters/pgvector"
)

func TestPgvectorStoreIntegration(t *testing.T) {
	// Skip this test if not running in integration test mode
	if os.Getenv("INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test; set INTEGRATION_TESTS=true to run")
	}

	pgvectorURL := os.Getenv("PGVECTOR_TEST_URL")
	if pgvectorURL == "" {
		t.Skip("Skipping pgvector test; PGVECTOR_TEST_URL environment variable not set")
	}

	// Random table name so concurrent test runs do not collide
	tableName := "test_" + uuid.New().String()[:8]

	ctx := context.Background()
	store, err := pgvector.NewPgvectorStore(ctx, pgvector.Config{
		ConnectionString: pgvectorURL,
		TableName:        tableName,
		DimensionSize:    3, // small dimension for tests
	})
	require.NoError(t, err)
	require.NotNil(t, store)

	defer func() {
		if store.DB() != nil {
			if _, err := store.DB().Exec(ctx, "DROP TABLE IF EXISTS "+tableName); err != nil {
				t.Logf("Failed to drop test table: %v", err)
			}
		}
		store.Close()
	}()

	namespace := "test-ns-" + uuid.New().String()[:8]
	base := time.Now().UTC().Truncate(time.Millisecond)

	records := []memory.Record{
		{
			ID:        uuid.New().String(),
			Namespace: namespace,
			Content:   "first memory about rust",
			Embedding: []float32{1, 0, 0},
			Labels:    []string{"Rust", "systems"},
			Source:    "integration",
			CreatedAt: base.Add(-2 * time.Hour),
		},
		{
			ID:        uuid.New().String(),
			Namespace: namespace,
			Content:   "second memory about go",
			Embedding: []float32{0, 1, 0},
			Labels:    []string{"go"},
			CreatedAt: base.Add(-1 * time.Hour),
		},
	}

	t.Run("Insert and Get", func(t *testing.T) {
		for _, r := range records {
			require.NoError(t, store.Insert(ctx, r))
		}

		got, err := store.Get(ctx, records[0].ID)
		require.NoError(t, err)
		assert.Equal(t, records[0].Content, got.Content)
		assert.Equal(t, records[0].Labels, got.Labels)
		assert.Equal(t, namespace, got.Namespace)
	})

	t.Run("Scan with label pushdown", func(t *testing.T) {
		got, err := store.Scan(ctx, memory.ScanQuery{
			Namespace:       namespace,
			LabelSubstrings: []string{"rust"},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, records[0].ID, got[0].ID)
	})

	t.Run("Scan orders newest first", func(t *testing.T) {
		got, err := store.Scan(ctx, memory.ScanQuery{Namespace: namespace})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, records[1].ID, got[0].ID)
	})

	t.Run("Nearest", func(t *testing.T) {
		neighbors, err := store.Nearest(ctx, namespace, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, records[0].ID, neighbors[0].Record.ID)
		assert.Greater(t, neighbors[0].Similarity, neighbors[1].Similarity)
		assert.LessOrEqual(t, neighbors[0].Similarity, 1.0)
	})

	t.Run("UpdateLabels and Delete", func(t *testing.T) {
		require.NoError(t, store.UpdateLabels(ctx, records[1].ID, []string{"go", "runtime"}))
		got, err := store.Get(ctx, records[1].ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "runtime"}, got.Labels)

		existed, err := store.Delete(ctx, records[1].ID)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = store.Delete(ctx, records[1].ID)
		require.NoError(t, err)
		assert.False(t, existed)
	})
}
