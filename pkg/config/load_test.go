package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	yaml := `
store:
  type: sqlite
  sqlite:
    path: /tmp/memvault.db
embedding:
  provider: openai
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 15, cfg.Embedding.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Engine.DefaultNumResults)
	assert.Equal(t, 30, cfg.Engine.TrendWindowDays)
	assert.InDelta(t, 7.0, cfg.Engine.TrendHalfLifeDays, 1e-9)
	assert.Equal(t, "memvault", cfg.Server.Name)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromBytesValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing store type", "embedding:\n  provider: mock\n"},
		{"unknown store type", "store:\n  type: cassandra\nembedding:\n  provider: mock\n"},
		{"pgvector without connection string", "store:\n  type: pgvector\nembedding:\n  provider: mock\n"},
		{"sqlite without path", "store:\n  type: sqlite\nembedding:\n  provider: mock\n"},
		{"missing embedding provider", "store:\n  type: mock\n"},
		{"unknown transport", "store:\n  type: mock\nembedding:\n  provider: mock\nserver:\n  transport: carrier-pigeon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromBytesEnvOverrides(t *testing.T) {
	t.Setenv("MEMVAULT_PGVECTOR_URL", "postgres://env-wins:5432/memvault")
	t.Setenv("MEMVAULT_ENCRYPTION_KEY", "env-secret")
	t.Setenv("MEMVAULT_NAMESPACE", "env-ns")

	yaml := `
store:
  type: pgvector
  pgvector:
    connection_string: postgres://from-file:5432/memvault
embedding:
  provider: mock
encryption:
  key: file-secret
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-wins:5432/memvault", cfg.Store.PgVector.ConnectionString)
	assert.Equal(t, "memories", cfg.Store.PgVector.TableName)
	assert.Equal(t, "env-secret", cfg.Encryption.Key)
	assert.Equal(t, "env-ns", cfg.Namespace)
}

func TestLoadFromBytesHTTPTransportDefaultAddr(t *testing.T) {
	yaml := `
store:
  type: mock
embedding:
  provider: mock
server:
  transport: http
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, ":8321", cfg.Server.Addr)
}
