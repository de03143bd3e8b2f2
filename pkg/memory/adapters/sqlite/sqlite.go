// Package sqlite implements the memory.Store interface on a local SQLite
// database. It has no vector index; semantic ranking happens in the caller.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	content TEXT NOT NULL,
	labels TEXT NOT NULL DEFAULT '[]',
	source TEXT NOT NULL DEFAULT '',
	embedding TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS memories_namespace_idx ON memories (namespace);
CREATE INDEX IF NOT EXISTS memories_source_idx ON memories (source);
CREATE INDEX IF NOT EXISTS memories_created_at_idx ON memories (created_at);
`

// timeLayout is fixed-width so the TEXT column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the memory.Store interface using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, stderrors.New("database path cannot be empty")
	}

	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened sqlite store", "path", path)
	return &SQLiteStore{db: db}, nil
}

// dbRecord is the row shape for sqlx scanning.
type dbRecord struct {
	ID        string `db:"id"`
	Namespace string `db:"namespace"`
	Content   string `db:"content"`
	Labels    string `db:"labels"`
	Source    string `db:"source"`
	Embedding string `db:"embedding"`
	CreatedAt string `db:"created_at"`
}

func (r dbRecord) toRecord() (memory.Record, error) {
	record := memory.Record{
		ID:        r.ID,
		Namespace: r.Namespace,
		Content:   r.Content,
		Source:    r.Source,
	}
	if err := json.Unmarshal([]byte(r.Labels), &record.Labels); err != nil {
		return memory.Record{}, fmt.Errorf("failed to decode labels: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Embedding), &record.Embedding); err != nil {
		return memory.Record{}, fmt.Errorf("failed to decode embedding: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return memory.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.CreatedAt = createdAt
	return record, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, record memory.Record) error {
	if record.ID == "" {
		return stderrors.New("record ID cannot be empty")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	labelsJSON, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	embeddingJSON, err := json.Marshal(record.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, namespace, content, labels, source, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Namespace, record.Content,
		string(labelsJSON), record.Source, string(embeddingJSON),
		record.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (memory.Record, error) {
	var row dbRecord
	err := s.db.GetContext(ctx, &row,
		`SELECT id, namespace, content, labels, source, embedding, created_at
		 FROM memories WHERE id = ?`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return memory.Record{}, errors.ErrNotFound
		}
		return memory.Record{}, fmt.Errorf("failed to query by ID: %w", err)
	}
	return row.toRecord()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET labels = ? WHERE id = ?`, string(labelsJSON), id)
	if err != nil {
		return fmt.Errorf("failed to update labels: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// Scan returns records matching the query, newest first. Label and source
// fragments narrow the result coarsely; callers apply exact semantics.
func (s *SQLiteStore) Scan(ctx context.Context, query memory.ScanQuery) ([]memory.Record, error) {
	builder := strings.Builder{}
	builder.WriteString(`
		SELECT id, namespace, content, labels, source, embedding, created_at
		FROM memories WHERE 1=1`)
	params := make([]interface{}, 0)

	if query.Namespace != "" {
		builder.WriteString(` AND namespace = ?`)
		params = append(params, query.Namespace)
	}
	if !query.Since.IsZero() {
		builder.WriteString(` AND created_at >= ?`)
		params = append(params, query.Since.UTC().Format(timeLayout))
	}
	if len(query.LabelSubstrings) > 0 {
		ors := make([]string, 0, len(query.LabelSubstrings))
		for _, frag := range query.LabelSubstrings {
			ors = append(ors, `EXISTS (SELECT 1 FROM json_each(memories.labels) WHERE lower(json_each.value) LIKE ?)`)
			params = append(params, "%"+frag+"%")
		}
		builder.WriteString(` AND (` + strings.Join(ors, " OR ") + `)`)
	}
	if len(query.SourceSubstrings) > 0 {
		ors := make([]string, 0, len(query.SourceSubstrings))
		for _, frag := range query.SourceSubstrings {
			ors = append(ors, `lower(source) LIKE ?`)
			params = append(params, "%"+frag+"%")
		}
		builder.WriteString(` AND (` + strings.Join(ors, " OR ") + `)`)
	}

	builder.WriteString(` ORDER BY created_at DESC, id ASC`)
	if query.Limit > 0 {
		builder.WriteString(` LIMIT ?`)
		params = append(params, query.Limit)
	}

	var rows []dbRecord
	if err := s.db.SelectContext(ctx, &rows, builder.String(), params...); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	records := make([]memory.Record, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
