// Package memory defines the memory record model and the store interfaces
// that all persistence adapters implement.
package memory

import (
	"context"
	"time"
)

// Record represents a single memory entry.
type Record struct {
	// ID is a unique identifier for the record
	ID string

	// Namespace scopes the record to one agent or project
	Namespace string

	// Content is the actual memory content (text)
	Content string

	// Embedding is the vector representation used for semantic search
	Embedding []float32

	// Labels are free-form tags attached at write time
	Labels []string

	// Source identifies where the memory came from (empty when unknown)
	Source string

	// CreatedAt is when this memory was stored
	CreatedAt time.Time
}

// ScanQuery narrows a Scan to a subset of records. Adapters apply it as a
// coarse pre-filter; exact pattern semantics are enforced by the caller.
type ScanQuery struct {
	// Namespace restricts results to one namespace; empty means all
	Namespace string

	// LabelSubstrings are lowercased fragments, any of which may appear
	// in a record label. Empty means no label restriction.
	LabelSubstrings []string

	// SourceSubstrings are lowercased fragments, any of which may appear
	// in a record source. Empty means no source restriction.
	SourceSubstrings []string

	// Since drops records created before this time when non-zero
	Since time.Time

	// Limit caps the result count when positive
	Limit int
}

// Neighbor is a record paired with its cosine similarity to a query vector.
type Neighbor struct {
	Record     Record
	Similarity float64
}

// Store is the interface that all persistence adapters implement.
type Store interface {
	// Insert persists a new record. The caller assigns the ID.
	Insert(ctx context.Context, record Record) error

	// Get fetches one record by ID, returning errors.ErrNotFound when absent.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes a record by ID. It reports whether a record existed,
	// so a second delete of the same ID returns (false, nil).
	Delete(ctx context.Context, id string) (bool, error)

	// UpdateLabels replaces the label set of an existing record.
	UpdateLabels(ctx context.Context, id string, labels []string) error

	// Scan returns records matching the query, newest first.
	Scan(ctx context.Context, query ScanQuery) ([]Record, error)

	// Close releases the adapter's resources.
	Close() error
}

// VectorStore extends Store with nearest-neighbor search. Adapters without
// native vector search implement only Store and the caller ranks in process.
type VectorStore interface {
	Store

	// Nearest returns up to limit records closest to the embedding by cosine
	// similarity, most similar first. An empty namespace searches all.
	Nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]Neighbor, error)
}
