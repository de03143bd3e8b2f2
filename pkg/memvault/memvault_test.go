package memvault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/crypto"
	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/memory/adapters/sqlite"
	"github.com/memvault/memvault/pkg/memvault"
	"github.com/memvault/memvault/test/testutil"
)

func mockConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Type: "mock"},
		Embedding: config.EmbeddingConfig{Provider: "mock", Dimensions: 8},
	}
}

func TestNewWithMockBackends(t *testing.T) {
	ctx := context.Background()
	vault, err := memvault.New(ctx, mockConfig())
	require.NoError(t, err)
	defer vault.Close()

	result, err := vault.Engine.Store(ctx, engine.StoreParams{
		Content:   "wiring smoke test",
		Labels:    []string{"infra"},
		Namespace: "test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Record.ID)

	got, err := vault.Engine.Get(ctx, result.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "wiring smoke test", got.Content)
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	ctx := context.Background()

	cfg := mockConfig()
	cfg.Store.Type = "cassandra"
	_, err := memvault.New(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store type")

	cfg = mockConfig()
	cfg.Embedding.Provider = "onnx"
	_, err = memvault.New(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported embedding provider")
}

func TestEncryptionAtRest(t *testing.T) {
	ctx := context.Background()
	path, cleanup := testutil.TempSQLitePath(t)
	defer cleanup()

	cfg := mockConfig()
	cfg.Store = config.StoreConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}}
	cfg.Encryption.Key = "correct horse battery staple"

	vault, err := memvault.New(ctx, cfg)
	require.NoError(t, err)

	result, err := vault.Engine.Store(ctx, engine.StoreParams{
		Content:   "secret plans",
		Namespace: "test",
	})
	require.NoError(t, err)

	// Through the engine the content reads back in the clear.
	got, err := vault.Engine.Get(ctx, result.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret plans", got.Content)
	require.NoError(t, vault.Close())

	// Reopening the database without the cipher shows only sealed content.
	raw, err := sqlite.NewSQLiteStore(path)
	require.NoError(t, err)
	defer raw.Close()

	stored, err := raw.Get(ctx, result.Record.ID)
	require.NoError(t, err)
	assert.True(t, crypto.IsSealed(stored.Content))
	assert.NotContains(t, stored.Content, "secret plans")
}
