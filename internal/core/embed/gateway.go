package embed

import (
	"context"
	"fmt"
	"log"
	"sync"

	cfg "github.com/davidemeka/ragserve/internal/config"
	"github.com/davidemeka/ragserve/internal/core"
)

// Gateway wraps one embedding backend, loaded on first use and cached for the
// process lifetime. Concurrent first callers block on the same load instead of
// triggering duplicates; a failed load is retried on the next call rather than
// poisoning the gateway until restart.
type Gateway struct {
	load func(context.Context) (core.EmbeddingProvider, error)

	mu       sync.Mutex
	provider core.EmbeddingProvider
}

func NewGateway(load func(context.Context) (core.EmbeddingProvider, error)) *Gateway {
	return &Gateway{load: load}
}

// GatewayFromConfig selects the backend named by EMBED_BACKEND.
func GatewayFromConfig(c *cfg.Config) *Gateway {
	return NewGateway(func(ctx context.Context) (core.EmbeddingProvider, error) {
		switch c.EmbedBackend {
		case "gemini":
			return NewGeminiEmbedder(ctx, c.GeminiAPIKey, c.EmbedModel, c.EmbedDim)
		case "openai":
			return NewOpenAIEmbedder(c.OpenAIAPIKey, c.EmbedModel, c.EmbedDim), nil
		case "ollama":
			return NewOllamaEmbedder(c.OllamaHost, c.EmbedModel, c.EmbedDim), nil
		default:
			return nil, fmt.Errorf("unknown embedding backend %q", c.EmbedBackend)
		}
	})
}

func (g *Gateway) backend(ctx context.Context) (core.EmbeddingProvider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.provider != nil {
		return g.provider, nil
	}
	p, err := g.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding backend: %w", err)
	}
	g.provider = p
	log.Printf("embed: loaded backend %s (%d dims)", p.Name(), p.Dimensions())
	return p, nil
}

// EmbedTexts embeds texts in stable input order with 1:1 correspondence.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	p, err := g.backend(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := p.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding backend %s returned %d vectors for %d texts", p.Name(), len(vecs), len(texts))
	}
	return vecs, nil
}

func (g *Gateway) Dimensions() int {
	p, err := g.backend(context.Background())
	if err != nil {
		return 0
	}
	return p.Dimensions()
}

func (g *Gateway) Name() string {
	p, err := g.backend(context.Background())
	if err != nil {
		return "unavailable"
	}
	return p.Name()
}

var _ core.EmbeddingProvider = (*Gateway)(nil)
