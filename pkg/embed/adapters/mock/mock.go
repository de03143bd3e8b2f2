// Package mock provides an in-memory embed.Embedder for tests.
package mock

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbedder implements the embed.Embedder interface with canned vectors.
// Texts without a canned vector get a deterministic hash-derived one, so
// distinct texts map to distinct directions and repeated calls agree.
type MockEmbedder struct {
	// canned maps text to predetermined embeddings
	canned map[string][]float32

	// dimensions is the width of generated vectors
	dimensions int

	// shouldError indicates if the embedder should return errors
	shouldError bool

	// mutex protects the map from concurrent access
	mutex sync.RWMutex

	// calls records every text passed to Embed
	calls []string
}

// MockOption is a function that configures a MockEmbedder.
type MockOption func(*MockEmbedder)

// WithDimensions sets the vector width for generated embeddings.
func WithDimensions(dims int) MockOption {
	return func(m *MockEmbedder) {
		m.dimensions = dims
	}
}

// WithShouldError configures whether the embedder returns errors.
func WithShouldError(shouldErr bool) MockOption {
	return func(m *MockEmbedder) {
		m.shouldError = shouldErr
	}
}

// NewMockEmbedder creates a new MockEmbedder with the given options.
func NewMockEmbedder(opts ...MockOption) *MockEmbedder {
	m := &MockEmbedder{
		canned:     make(map[string][]float32),
		dimensions: 8,
		calls:      make([]string, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Embed implements the embed.Embedder interface.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls = append(m.calls, text)

	if m.shouldError {
		return nil, errors.New("mock embedder error")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if embedding, ok := m.canned[text]; ok {
		out := make([]float32, len(embedding))
		copy(out, embedding)
		return out, nil
	}

	return m.derive(text), nil
}

// derive builds a unit vector from the FNV hash of the text.
func (m *MockEmbedder) derive(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11)) / float64(1<<52)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// Dimensions returns the configured vector width.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// AddEmbedding adds a canned embedding for a specific text.
func (m *MockEmbedder) AddEmbedding(text string, embedding []float32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.canned[text] = embedding
}

// SetShouldError configures whether the embedder returns errors.
func (m *MockEmbedder) SetShouldError(shouldErr bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.shouldError = shouldErr
}

// Calls returns a copy of the embedded texts, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}
