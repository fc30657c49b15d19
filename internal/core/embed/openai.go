package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/davidemeka/ragserve/internal/core"
)

// maxBatchSize caps how many inputs go into one embeddings request.
const maxBatchSize = 100

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

func NewOpenAIEmbedder(apiKey, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model, dims: dims}
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
		}

		for _, emb := range resp.Data {
			all = append(all, emb.Embedding)
		}
	}
	return all, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }
func (e *OpenAIEmbedder) Name() string    { return "openai/" + e.model }

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
