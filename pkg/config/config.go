package config

// Config represents the top-level configuration for memvault.
type Config struct {
	// Store configures the durable memory store
	Store StoreConfig `yaml:"store"`

	// Embedding configures the embedding provider
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Engine configures retrieval and trending behavior
	Engine EngineConfig `yaml:"engine"`

	// Encryption configures content encryption at rest
	Encryption EncryptionConfig `yaml:"encryption"`

	// Server configures the MCP server surface
	Server ServerConfig `yaml:"server"`

	// Namespace is the default namespace applied when a request gives none.
	// Empty means no partitioning (all namespaces visible).
	Namespace string `yaml:"namespace"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the durable memory store.
type StoreConfig struct {
	// Type specifies the backend ("pgvector", "chromem", "sqlite", "boltdb", "mock")
	Type string `yaml:"type"`

	// PgVector configures PostgreSQL pgvector storage
	PgVector PgVectorConfig `yaml:"pgvector"`

	// Chromem configures the embedded chromem-go vector store
	Chromem ChromemConfig `yaml:"chromem"`

	// SQLite configures single-file SQLite storage
	SQLite SQLiteConfig `yaml:"sqlite"`

	// BoltDB configures BoltDB key-value storage
	BoltDB BoltDBConfig `yaml:"boltdb"`
}

// PgVectorConfig configures PostgreSQL with the pgvector extension.
type PgVectorConfig struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string `yaml:"connection_string"`

	// TableName is the name of the table to use
	TableName string `yaml:"table_name"`
}

// ChromemConfig configures the embedded chromem-go vector store.
type ChromemConfig struct {
	// Collection is the collection name to use
	Collection string `yaml:"collection"`
}

// SQLiteConfig configures SQLite storage.
type SQLiteConfig struct {
	// Path is the database file path
	Path string `yaml:"path"`
}

// BoltDBConfig configures BoltDB storage.
type BoltDBConfig struct {
	// Path is the database file path
	Path string `yaml:"path"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is the embedding provider ("openai", "mock")
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider
	APIKey string `yaml:"api_key"`

	// Model is the embedding model to use
	Model string `yaml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint (Ollama, LM Studio);
	// empty means the official API
	BaseURL string `yaml:"base_url"`

	// Dimensions declares the expected vector width. Zero means "trust the
	// startup probe"; non-zero values are validated against it.
	Dimensions int `yaml:"dimensions"`

	// TimeoutSeconds bounds each embedding call
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// EngineConfig configures retrieval and trending behavior.
type EngineConfig struct {
	// DefaultNumResults caps retrieval results when the caller gives no limit
	DefaultNumResults int `yaml:"default_num_results"`

	// TrendWindowDays is the default trending window
	TrendWindowDays int `yaml:"trend_window_days"`

	// TrendHalfLifeDays is the decay half-life for trending scores
	TrendHalfLifeDays float64 `yaml:"trend_half_life_days"`

	// StoreTimeoutSeconds bounds each durable-store call
	StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`
}

// EncryptionConfig configures content encryption at rest.
type EncryptionConfig struct {
	// Key is the passphrase for AES-256-GCM content encryption.
	// Empty disables encryption.
	Key string `yaml:"key"`
}

// ServerConfig configures the MCP server surface.
type ServerConfig struct {
	// Name is the advertised server name
	Name string `yaml:"name"`

	// Version is the advertised server version
	Version string `yaml:"version"`

	// Transport is "stdio" or "http"
	Transport string `yaml:"transport"`

	// Addr is the listen address for the http transport
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the logging level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the log output format ("text", "json")
	Format string `yaml:"format"`
}
