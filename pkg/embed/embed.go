// Package embed defines the embedding provider interface used to turn
// memory content and queries into vectors.
package embed

import "context"

// Embedder generates a vector representation for a piece of text.
// Implementations live under embed/adapters.
type Embedder interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of the vectors this embedder produces.
	// Adapters that probe the model at startup report the probed value.
	Dimensions() int
}
