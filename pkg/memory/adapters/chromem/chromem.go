// Package chromem implements the memory.VectorStore interface using the
// embedded chromem-go vector database. The store is in-memory and
// process-local, intended for development and tests rather than durable use.
package chromem

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
)

// Config contains the configuration for a chromem adapter.
type Config struct {
	// Collection is the chromem collection name
	Collection string
}

// ChromemStore implements the memory.VectorStore interface on chromem-go.
//
// chromem documents carry only string metadata, so the full records live in
// a sidecar map and the collection handles the vector math.
type ChromemStore struct {
	collection *chromemgo.Collection

	mutex   sync.RWMutex
	records map[string]memory.Record
}

// NewChromemStore creates a new in-memory chromem-backed store.
func NewChromemStore(config Config) (*ChromemStore, error) {
	if config.Collection == "" {
		config.Collection = "memories"
	}

	db := chromemgo.NewDB()
	// The embedding function is never used: every document arrives with a
	// precomputed vector.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, stderrors.New("embedding function not available")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	log.Debug("Created chromem collection", "collection", config.Collection)
	return &ChromemStore{
		collection: collection,
		records:    make(map[string]memory.Record),
	}, nil
}

func (s *ChromemStore) Insert(ctx context.Context, record memory.Record) error {
	if record.ID == "" {
		return stderrors.New("record ID cannot be empty")
	}
	if len(record.Embedding) == 0 {
		return stderrors.New("record must have an embedding")
	}

	err := s.collection.AddDocument(ctx, chromemgo.Document{
		ID:        record.ID,
		Content:   record.Content,
		Embedding: record.Embedding,
		Metadata:  map[string]string{"namespace": record.Namespace},
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	s.mutex.Lock()
	s.records[record.ID] = record
	s.mutex.Unlock()
	return nil
}

func (s *ChromemStore) Get(ctx context.Context, id string) (memory.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return memory.Record{}, errors.ErrNotFound
	}
	return record, nil
}

func (s *ChromemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	delete(s.records, id)
	return true, nil
}

func (s *ChromemStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.records[id]
	if !ok {
		return errors.ErrNotFound
	}
	record.Labels = make([]string, len(labels))
	copy(record.Labels, labels)
	s.records[id] = record
	return nil
}

func (s *ChromemStore) Scan(ctx context.Context, query memory.ScanQuery) ([]memory.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	results := make([]memory.Record, 0)
	for _, record := range s.records {
		if query.Namespace != "" && record.Namespace != query.Namespace {
			continue
		}
		if !query.Since.IsZero() && record.CreatedAt.Before(query.Since) {
			continue
		}
		if len(query.LabelSubstrings) > 0 && !anySubstring(record.Labels, query.LabelSubstrings) {
			continue
		}
		if len(query.SourceSubstrings) > 0 && !anySubstring([]string{record.Source}, query.SourceSubstrings) {
			continue
		}
		results = append(results, record)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

func anySubstring(values, fragments []string) bool {
	for _, v := range values {
		lower := strings.ToLower(v)
		for _, frag := range fragments {
			if strings.Contains(lower, frag) {
				return true
			}
		}
	}
	return false
}

func (s *ChromemStore) Nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]memory.Neighbor, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	var where map[string]string
	if namespace != "" {
		where = map[string]string{"namespace": namespace}
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	neighbors := make([]memory.Neighbor, 0, len(results))
	for _, result := range results {
		record, ok := s.records[result.ID]
		if !ok {
			continue
		}
		similarity := float64(result.Similarity)
		if similarity < 0 {
			similarity = 0
		} else if similarity > 1 {
			similarity = 1
		}
		neighbors = append(neighbors, memory.Neighbor{Record: record, Similarity: similarity})
	}
	return neighbors, nil
}

func (s *ChromemStore) Close() error {
	return nil
}
