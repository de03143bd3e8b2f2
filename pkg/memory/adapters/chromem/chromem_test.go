package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/memory"
)

func newTestStore(t *testing.T) *ChromemStore {
	store, err := NewChromemStore(Config{Collection: "test-memories"})
	require.NoError(t, err)
	return store
}

func record(id, ns string, embedding []float32, createdAt time.Time) memory.Record {
	return memory.Record{
		ID:        id,
		Namespace: ns,
		Content:   "content of " + id,
		Labels:    []string{"test"},
		Embedding: embedding,
		CreatedAt: createdAt,
	}
}

func TestChromemStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, record("r1", "default", []float32{1, 0, 0}, now)))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "content of r1", got.Content)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	existed, err := store.Delete(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = store.Get(ctx, "r1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChromemStoreNearest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, record("close", "default", []float32{1, 0, 0}, now)))
	require.NoError(t, store.Insert(ctx, record("far", "default", []float32{0, 1, 0}, now)))
	require.NoError(t, store.Insert(ctx, record("other-ns", "beta", []float32{1, 0, 0}, now)))

	neighbors, err := store.Nearest(ctx, "default", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, neighbors)
	assert.Equal(t, "close", neighbors[0].Record.ID)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-6)
	for _, n := range neighbors {
		assert.NotEqual(t, "other-ns", n.Record.ID, "namespace filter must hold")
	}

	// Empty store yields no neighbors, not an error.
	empty := newTestStore(t)
	neighbors, err = empty.Nearest(ctx, "default", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestChromemStoreScanAndLabels(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, record("r1", "default", []float32{1, 0, 0}, base)))
	require.NoError(t, store.Insert(ctx, record("r2", "default", []float32{0, 1, 0}, base.Add(time.Hour))))

	require.NoError(t, store.UpdateLabels(ctx, "r1", []string{"renamed"}))
	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"renamed"}, got.Labels)

	records, err := store.Scan(ctx, memory.ScanQuery{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r2", records[0].ID, "newest first")

	records, err = store.Scan(ctx, memory.ScanQuery{LabelSubstrings: []string{"renamed"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
}
