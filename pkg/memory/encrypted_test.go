package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/crypto"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/memory/adapters/mock"
)

func testRecord(id, content string) memory.Record {
	return memory.Record{
		ID:        id,
		Namespace: "default",
		Content:   content,
		Embedding: []float32{1, 0, 0},
		Labels:    []string{"test"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewMockStore()
	store := memory.NewEncrypted(inner, crypto.New("test-key"))

	require.NoError(t, store.Insert(ctx, testRecord("r1", "plain words")))

	// Adapter sees only sealed content.
	raw, err := inner.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, crypto.IsSealed(raw.Content))
	assert.NotContains(t, raw.Content, "plain words")

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "plain words", got.Content)

	records, err := store.Scan(ctx, memory.ScanQuery{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "plain words", records[0].Content)
}

func TestEncryptedStoreVectorPassthrough(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewMockStore()
	store := memory.NewEncrypted(inner, crypto.New("test-key"))

	vs, ok := store.(memory.VectorStore)
	require.True(t, ok, "wrapping a vector store should keep vector search")

	require.NoError(t, store.Insert(ctx, testRecord("r1", "vector content")))

	neighbors, err := vs.Nearest(ctx, "default", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "vector content", neighbors[0].Record.Content)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-9)
}

func TestEncryptedStoreSkipsUndecryptable(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewMockStore()

	// One record sealed with a different key.
	other := memory.NewEncrypted(inner, crypto.New("other-key"))
	require.NoError(t, other.Insert(ctx, testRecord("foreign", "sealed elsewhere")))

	store := memory.NewEncrypted(inner, crypto.New("test-key"))
	require.NoError(t, store.Insert(ctx, testRecord("mine", "readable")))

	records, err := store.Scan(ctx, memory.ScanQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mine", records[0].ID)

	// Direct lookup of the foreign record is an error, not silence.
	_, err = store.Get(ctx, "foreign")
	assert.Error(t, err)
}

func TestEncryptedStorePlaintextCompatibility(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewMockStore()

	// Record written before encryption was turned on.
	require.NoError(t, inner.Insert(ctx, testRecord("legacy", "old plaintext")))

	store := memory.NewEncrypted(inner, crypto.New("test-key"))
	got, err := store.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "old plaintext", got.Content)
}

func TestEncryptedStoreDisabledCipher(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewMockStore()
	store := memory.NewEncrypted(inner, crypto.New(""))

	require.NoError(t, store.Insert(ctx, testRecord("r1", "never sealed")))

	raw, err := inner.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "never sealed", raw.Content)
}
