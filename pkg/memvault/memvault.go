// Package memvault assembles a working memory engine from configuration:
// store backend, embedding provider, optional content encryption, and the
// engine itself.
package memvault

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/crypto"
	"github.com/memvault/memvault/pkg/embed"
	embedmock "github.com/memvault/memvault/pkg/embed/adapters/mock"
	embedopenai "github.com/memvault/memvault/pkg/embed/adapters/openai"
	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/memory/adapters/boltdb"
	"github.com/memvault/memvault/pkg/memory/adapters/chromem"
	storemock "github.com/memvault/memvault/pkg/memory/adapters/mock"
	"github.com/memvault/memvault/pkg/memory/adapters/pgvector"
	"github.com/memvault/memvault/pkg/memory/adapters/sqlite"
)

// Vault bundles the engine with the resources behind it.
type Vault struct {
	Engine *engine.Engine
	Config *config.Config

	store memory.Store
}

// NewFromConfig loads the config file and wires up a Vault.
func NewFromConfig(ctx context.Context, configPath string) (*Vault, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(ctx, cfg)
}

// New wires up a Vault from an already-loaded configuration.
func New(ctx context.Context, cfg *config.Config) (*Vault, error) {
	embedder, err := initEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	store, err := initStore(ctx, cfg, embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	// Encryption wraps the store so every backend gets it for free.
	store = memory.NewEncrypted(store, crypto.New(cfg.Encryption.Key))

	eng := engine.New(store, embedder, engine.Config{
		EmbedTimeout:      time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		StoreTimeout:      time.Duration(cfg.Engine.StoreTimeoutSeconds) * time.Second,
		DefaultNumResults: cfg.Engine.DefaultNumResults,
		TrendWindowDays:   cfg.Engine.TrendWindowDays,
		TrendHalfLifeDays: cfg.Engine.TrendHalfLifeDays,
	})

	log.Info("memvault initialized",
		"store_type", cfg.Store.Type,
		"embedding_provider", cfg.Embedding.Provider,
		"dimensions", embedder.Dimensions(),
		"encryption", cfg.Encryption.Key != "")

	return &Vault{Engine: eng, Config: cfg, store: store}, nil
}

// Close releases the store's resources.
func (v *Vault) Close() error {
	return v.store.Close()
}

func initEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err := embedopenai.NewOpenAIEmbedder(ctx, embedopenai.Config{
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			BaseURL: cfg.Embedding.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Embedding.Dimensions > 0 && embedder.Dimensions() != cfg.Embedding.Dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: model produces %d, config expects %d",
				embedder.Dimensions(), cfg.Embedding.Dimensions)
		}
		return embedder, nil
	case "mock":
		return embedmock.NewMockEmbedder(embedmock.WithDimensions(cfg.Embedding.Dimensions)), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func initStore(ctx context.Context, cfg *config.Config, dimensions int) (memory.Store, error) {
	switch cfg.Store.Type {
	case "pgvector":
		return pgvector.NewPgvectorStore(ctx, pgvector.Config{
			ConnectionString: cfg.Store.PgVector.ConnectionString,
			TableName:        cfg.Store.PgVector.TableName,
			DimensionSize:    dimensions,
		})
	case "chromem":
		return chromem.NewChromemStore(chromem.Config{
			Collection: cfg.Store.Chromem.Collection,
		})
	case "sqlite":
		return sqlite.NewSQLiteStore(cfg.Store.SQLite.Path)
	case "boltdb":
		db, err := bolt.Open(cfg.Store.BoltDB.Path, 0600, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb database: %w", err)
		}
		return boltdb.NewBoltStore(db)
	case "mock":
		return storemock.NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
