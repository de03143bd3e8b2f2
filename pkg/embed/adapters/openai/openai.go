// Package openai implements the embed.Embedder interface against the OpenAI
// embeddings API. Any OpenAI-compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/memvault/memvault/pkg/log"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyEmbedding is returned when the API responds without embedding data.
	ErrEmptyEmbedding = errors.New("no embedding data in response")
)

// Config holds the configuration for the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the embedding model, e.g., "text-embedding-3-small".
	Model string
	// BaseURL points at an alternate OpenAI-compatible endpoint (Ollama,
	// LM Studio, vLLM). Empty means the official API.
	BaseURL string
}

// OpenAIEmbedder implements the embed.Embedder interface using the OpenAI API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates a new OpenAI embedder and probes the model once
// to learn its vector width.
func NewOpenAIEmbedder(ctx context.Context, config Config) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}

	// Probe the model so stores can size their vector columns before the
	// first real write.
	probe, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probing embedding model %s: %w", config.Model, err)
	}
	e.dimensions = len(probe)

	log.Debug("Embedding model ready", "model", e.model, "dimensions", e.dimensions)
	return e, nil
}

// Embed generates an embedding for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	request := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}

	response, err := e.client.CreateEmbeddings(ctx, request)
	if err != nil {
		log.Error("Failed to generate embedding", "error", err, "model", e.model)
		return nil, err
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return response.Data[0].Embedding, nil
}

// Dimensions returns the probed vector width.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
