package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file. A .env file in the
// working directory is loaded first so env overrides pick it up.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvironmentOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyEnvironmentOverrides applies environment variable overrides.
func applyEnvironmentOverrides(config *Config) {
	if dsn := os.Getenv("MEMVAULT_PGVECTOR_URL"); dsn != "" {
		config.Store.PgVector.ConnectionString = dsn
	}
	if path := os.Getenv("MEMVAULT_SQLITE_PATH"); path != "" {
		config.Store.SQLite.Path = path
	}
	if path := os.Getenv("MEMVAULT_BOLTDB_PATH"); path != "" {
		config.Store.BoltDB.Path = path
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("MEMVAULT_EMBEDDING_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if key := os.Getenv("MEMVAULT_ENCRYPTION_KEY"); key != "" {
		config.Encryption.Key = key
	}
	if ns := os.Getenv("MEMVAULT_NAMESPACE"); ns != "" {
		config.Namespace = ns
	}
	if level := os.Getenv("MEMVAULT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(config *Config) error {
	switch strings.ToLower(config.Store.Type) {
	case "pgvector":
		if config.Store.PgVector.ConnectionString == "" {
			return fmt.Errorf("connection string is required for pgvector store type")
		}
		if config.Store.PgVector.TableName == "" {
			config.Store.PgVector.TableName = "memories"
		}
	case "chromem":
		if config.Store.Chromem.Collection == "" {
			config.Store.Chromem.Collection = "memories"
		}
	case "sqlite":
		if config.Store.SQLite.Path == "" {
			return fmt.Errorf("database path is required for sqlite store type")
		}
	case "boltdb":
		if config.Store.BoltDB.Path == "" {
			return fmt.Errorf("database path is required for boltdb store type")
		}
	case "mock":
		// Mock store doesn't require additional validation
	case "":
		return fmt.Errorf("store type is required")
	default:
		return fmt.Errorf("unsupported store type: %s", config.Store.Type)
	}

	switch strings.ToLower(config.Embedding.Provider) {
	case "openai":
		// API key can arrive via environment variable, so it is not checked here
		if config.Embedding.Model == "" {
			config.Embedding.Model = "text-embedding-3-small"
		}
	case "mock":
		if config.Embedding.Dimensions <= 0 {
			config.Embedding.Dimensions = 8
		}
	case "":
		return fmt.Errorf("embedding provider is required")
	default:
		return fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}

	if config.Embedding.TimeoutSeconds <= 0 {
		config.Embedding.TimeoutSeconds = 15
	}
	if config.Engine.DefaultNumResults <= 0 {
		config.Engine.DefaultNumResults = 10
	}
	if config.Engine.TrendWindowDays <= 0 {
		config.Engine.TrendWindowDays = 30
	}
	if config.Engine.TrendHalfLifeDays <= 0 {
		config.Engine.TrendHalfLifeDays = 7
	}
	if config.Engine.StoreTimeoutSeconds <= 0 {
		config.Engine.StoreTimeoutSeconds = 10
	}

	if config.Server.Name == "" {
		config.Server.Name = "memvault"
	}
	if config.Server.Version == "" {
		config.Server.Version = "0.1.0"
	}
	switch strings.ToLower(config.Server.Transport) {
	case "":
		config.Server.Transport = "stdio"
	case "stdio":
	case "http":
		if config.Server.Addr == "" {
			config.Server.Addr = ":8321"
		}
	default:
		return fmt.Errorf("unsupported server transport: %s", config.Server.Transport)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	return nil
}
