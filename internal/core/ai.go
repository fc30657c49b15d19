package core

import "context"

// EmbeddingProvider turns text into fixed-dimension vectors. Implementations
// must preserve input order and return exactly one vector per input text.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
