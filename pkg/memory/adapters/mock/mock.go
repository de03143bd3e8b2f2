// Package mock provides an in-memory memory.VectorStore, used in tests and
// as the throwaway backend for local experiments.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/rank"
)

// MockStore implements the memory.VectorStore interface with a map.
type MockStore struct {
	mutex   sync.RWMutex
	records map[string]memory.Record

	// forcedError, when set, is returned by every operation
	forcedError error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		records: make(map[string]memory.Record),
	}
}

// SetForcedError makes every subsequent operation fail with err.
// Pass nil to restore normal behavior.
func (s *MockStore) SetForcedError(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.forcedError = err
}

// Len returns the number of stored records.
func (s *MockStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}

func (s *MockStore) Insert(ctx context.Context, record memory.Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.forcedError != nil {
		return s.forcedError
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	labels := make([]string, len(record.Labels))
	copy(labels, record.Labels)
	record.Labels = labels
	embedding := make([]float32, len(record.Embedding))
	copy(embedding, record.Embedding)
	record.Embedding = embedding

	s.records[record.ID] = record
	return nil
}

func (s *MockStore) Get(ctx context.Context, id string) (memory.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.forcedError != nil {
		return memory.Record{}, s.forcedError
	}

	record, ok := s.records[id]
	if !ok {
		return memory.Record{}, errors.ErrNotFound
	}
	return record, nil
}

func (s *MockStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.forcedError != nil {
		return false, s.forcedError
	}

	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

func (s *MockStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.forcedError != nil {
		return s.forcedError
	}

	record, ok := s.records[id]
	if !ok {
		return errors.ErrNotFound
	}
	record.Labels = make([]string, len(labels))
	copy(record.Labels, labels)
	s.records[id] = record
	return nil
}

func (s *MockStore) Scan(ctx context.Context, query memory.ScanQuery) ([]memory.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.forcedError != nil {
		return nil, s.forcedError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]memory.Record, 0)
	for _, record := range s.records {
		if !matchesQuery(record, query) {
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

func matchesQuery(record memory.Record, query memory.ScanQuery) bool {
	if query.Namespace != "" && record.Namespace != query.Namespace {
		return false
	}
	if !query.Since.IsZero() && record.CreatedAt.Before(query.Since) {
		return false
	}
	if len(query.LabelSubstrings) > 0 && !anySubstring(record.Labels, query.LabelSubstrings) {
		return false
	}
	if len(query.SourceSubstrings) > 0 && !anySubstring([]string{record.Source}, query.SourceSubstrings) {
		return false
	}
	return true
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

func (s *MockStore) Nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]memory.Neighbor, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.forcedError != nil {
		return nil, s.forcedError
	}

	neighbors := make([]memory.Neighbor, 0)
	for _, record := range s.records {
		if namespace != "" && record.Namespace != namespace {
			continue
		}
		dist, err := rank.CosineDistance(embedding, record.Embedding)
		if err != nil {
			continue
		}
		neighbors = append(neighbors, memory.Neighbor{
			Record:     record,
			Similarity: rank.Similarity(dist),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		if !neighbors[i].Record.CreatedAt.Equal(neighbors[j].Record.CreatedAt) {
			return neighbors[i].Record.CreatedAt.After(neighbors[j].Record.CreatedAt)
		}
		return neighbors[i].Record.ID < neighbors[j].Record.ID
	})

	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func (s *MockStore) Close() error {
	return nil
}
