// Package pgvector implements the memory.VectorStore interface using
// PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
)

// Config contains the configuration for a pgvector adapter.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// TableName is the name of the table to use
	TableName string

	// DimensionSize is the size of vector embeddings
	DimensionSize int
}

// PgvectorStore implements the memory.VectorStore interface on PostgreSQL.
type PgvectorStore struct {
	db            *pgxpool.Pool
	tableName     string
	dimensionSize int
}

// DB returns the underlying connection pool (used for testing).
func (s *PgvectorStore) DB() *pgxpool.Pool {
	return s.db
}

// NewPgvectorStore connects to PostgreSQL, ensures the pgvector extension,
// and creates the memories table and its indexes when missing.
func NewPgvectorStore(ctx context.Context, config Config) (*PgvectorStore, error) {
	if config.ConnectionString == "" {
		return nil, stderrors.New("connection string cannot be empty")
	}
	if config.TableName == "" {
		config.TableName = "memories"
	}
	if config.DimensionSize <= 0 {
		config.DimensionSize = 1536
	}

	db, err := pgxpool.New(ctx, config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PgvectorStore{
		db:            db,
		tableName:     config.TableName,
		dimensionSize: config.DimensionSize,
	}
	if err := store.initializeTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pgvector table: %w", err)
	}
	return store, nil
}

// initializeTable creates the table and indexes if they don't exist.
func (s *PgvectorStore) initializeTable(ctx context.Context) error {
	var extensionExists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extensionExists)
	if err != nil {
		return fmt.Errorf("failed to check for pgvector extension: %w", err)
	}
	if !extensionExists {
		if _, err = s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("failed to create pgvector extension: %w", err)
		}
		log.Info("Created pgvector extension")
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			content TEXT NOT NULL,
			labels JSONB NOT NULL DEFAULT '[]',
			source TEXT NOT NULL DEFAULT '',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`, s.tableName, s.dimensionSize))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indices := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_namespace",
			sql:  fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)", s.tableName, s.tableName),
		},
		{
			name: "idx_source",
			sql:  fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (source)", s.tableName, s.tableName),
		},
		{
			name: "idx_created_at",
			sql:  fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)", s.tableName, s.tableName),
		},
		{
			name: "idx_labels",
			sql:  fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_labels_idx ON %s USING gin (labels)", s.tableName, s.tableName),
		},
		{
			name: "idx_embedding",
			sql:  fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)", s.tableName, s.tableName),
		},
	}
	for _, idx := range indices {
		if _, err = s.db.Exec(ctx, idx.sql); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// Insert persists a new memory record.
func (s *PgvectorStore) Insert(ctx context.Context, record memory.Record) error {
	if record.ID == "" {
		return stderrors.New("record ID cannot be empty")
	}
	if len(record.Embedding) != s.dimensionSize {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(record.Embedding), s.dimensionSize)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	labelsJSON, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, namespace, content, labels, source, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
	`, s.tableName),
		record.ID,
		record.Namespace,
		record.Content,
		labelsJSON,
		record.Source,
		embedToString(record.Embedding),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}

	log.Debug("Stored record in pgvector", "id", record.ID, "namespace", record.Namespace, "table", s.tableName)
	return nil
}

// Get fetches one record by ID.
func (s *PgvectorStore) Get(ctx context.Context, id string) (memory.Record, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, namespace, content, labels, source, embedding, created_at
		FROM %s WHERE id = $1
	`, s.tableName), id)

	record, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return memory.Record{}, errors.ErrNotFound
		}
		return memory.Record{}, fmt.Errorf("failed to query by ID: %w", err)
	}
	return record, nil
}

// Delete removes a record, reporting whether it existed.
func (s *PgvectorStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdateLabels replaces the label set of an existing record.
func (s *PgvectorStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	result, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET labels = $1 WHERE id = $2
	`, s.tableName), labelsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update labels: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// Scan returns records matching the query, newest first. Substring filters
// are applied coarsely in SQL; callers apply their exact semantics on top.
func (s *PgvectorStore) Scan(ctx context.Context, query memory.ScanQuery) ([]memory.Record, error) {
	conditions := []string{"TRUE"}
	args := make([]interface{}, 0)

	if query.Namespace != "" {
		args = append(args, query.Namespace)
		conditions = append(conditions, fmt.Sprintf("namespace = $%d", len(args)))
	}
	if !query.Since.IsZero() {
		args = append(args, query.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(query.LabelSubstrings) > 0 {
		ors := make([]string, 0, len(query.LabelSubstrings))
		for _, frag := range query.LabelSubstrings {
			args = append(args, "%"+frag+"%")
			ors = append(ors, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements_text(labels) AS l WHERE l ILIKE $%d)", len(args)))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}
	if len(query.SourceSubstrings) > 0 {
		ors := make([]string, 0, len(query.SourceSubstrings))
		for _, frag := range query.SourceSubstrings {
			args = append(args, "%"+frag+"%")
			ors = append(ors, fmt.Sprintf("source ILIKE $%d", len(args)))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, namespace, content, labels, source, embedding, created_at
		FROM %s
		WHERE %s
		ORDER BY created_at DESC, id ASC
	`, s.tableName, strings.Join(conditions, " AND "))
	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Nearest performs cosine-similarity search with the <=> operator.
func (s *PgvectorStore) Nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]memory.Neighbor, error) {
	if len(embedding) != s.dimensionSize {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(embedding), s.dimensionSize)
	}
	if limit <= 0 {
		limit = 10
	}

	args := []interface{}{embedToString(embedding)}
	where := "TRUE"
	if namespace != "" {
		args = append(args, namespace)
		where = fmt.Sprintf("namespace = $%d", len(args))
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, namespace, content, labels, source, embedding, created_at,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1::vector, created_at DESC, id ASC
		LIMIT %d
	`, s.tableName, where, limit)

	rows, err := s.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform semantic search: %w", err)
	}
	defer rows.Close()

	var neighbors []memory.Neighbor
	for rows.Next() {
		var record memory.Record
		var labelsJSON []byte
		var embeddingStr string
		var similarity float64

		err := rows.Scan(
			&record.ID,
			&record.Namespace,
			&record.Content,
			&labelsJSON,
			&record.Source,
			&embeddingStr,
			&record.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(labelsJSON, &record.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
		record.Embedding = stringToEmbed(embeddingStr)

		if similarity < 0 {
			similarity = 0
		} else if similarity > 1 {
			similarity = 1
		}
		neighbors = append(neighbors, memory.Neighbor{Record: record, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return neighbors, nil
}

// Close closes the connection pool.
func (s *PgvectorStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (memory.Record, error) {
	var record memory.Record
	var labelsJSON []byte
	var embeddingStr string

	err := row.Scan(
		&record.ID,
		&record.Namespace,
		&record.Content,
		&labelsJSON,
		&record.Source,
		&embeddingStr,
		&record.CreatedAt,
	)
	if err != nil {
		return memory.Record{}, err
	}
	if err := json.Unmarshal(labelsJSON, &record.Labels); err != nil {
		return memory.Record{}, fmt.Errorf("failed to decode labels: %w", err)
	}
	record.Embedding = stringToEmbed(embeddingStr)
	return record, nil
}

func collectRecords(rows pgx.Rows) ([]memory.Record, error) {
	var records []memory.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Helper function to convert []float32 to string for pgvector
func embedToString(embedding []float32) string {
	elements := make([]string, len(embedding))
	for i, v := range embedding {
		elements[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(elements, ",") + "]"
}

// Helper function to convert pgvector string to []float32
func stringToEmbed(embeddingStr string) []float32 {
	embeddingStr = strings.TrimPrefix(embeddingStr, "[")
	embeddingStr = strings.TrimSuffix(embeddingStr, "]")

	elements := strings.Split(embeddingStr, ",")
	embedding := make([]float32, len(elements))
	for i, element := range elements {
		val, err := strconv.ParseFloat(strings.TrimSpace(element), 32)
		if err != nil {
			log.Error("Failed to parse embedding element", "error", err, "element", element)
			val = 0
		}
		embedding[i] = float32(val)
	}
	return embedding
}
