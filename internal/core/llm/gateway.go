package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cfg "github.com/davidemeka/ragserve/internal/config"
)

var (
	// ErrUnsupportedModel means no provider claims the model name's prefix.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrMissingCredential means neither the caller nor the configuration
	// supplied an API key for the selected provider.
	ErrMissingCredential = errors.New("missing provider credential")
)

// Provider is the single capability shape all generation backends share.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// providerSpec binds a model-name prefix to a provider identity, the
// configured default credential and a constructor.
type providerSpec struct {
	prefix     string
	name       string
	defaultKey func(*cfg.Config) string
	build      func(ctx context.Context, apiKey, model string) (Provider, error)
}

// providerTable is the closed set of known providers. Resolution walks it in
// order; no prefix match means the model is unsupported.
var providerTable = []providerSpec{
	{
		prefix:     "gpt-",
		name:       "openai",
		defaultKey: func(c *cfg.Config) string { return c.OpenAIAPIKey },
		build: func(_ context.Context, apiKey, model string) (Provider, error) {
			return NewOpenAIProvider(apiKey, model), nil
		},
	},
	{
		prefix:     "claude-",
		name:       "anthropic",
		defaultKey: func(c *cfg.Config) string { return c.AnthropicAPIKey },
		build: func(_ context.Context, apiKey, model string) (Provider, error) {
			return NewAnthropicProvider(apiKey, model), nil
		},
	},
	{
		prefix:     "gemini-",
		name:       "google",
		defaultKey: func(c *cfg.Config) string { return c.GeminiAPIKey },
		build:      func(ctx context.Context, apiKey, model string) (Provider, error) { return NewGeminiProvider(ctx, apiKey, model) },
	},
	{
		prefix:     "deepseek-",
		name:       "deepseek",
		defaultKey: func(c *cfg.Config) string { return c.DeepSeekAPIKey },
		build: func(_ context.Context, apiKey, model string) (Provider, error) {
			return NewDeepSeekProvider(apiKey, model), nil
		},
	},
}

// Gateway resolves model names to providers and completes prompts against
// them. A caller-supplied API key always wins over the configured default.
type Gateway struct {
	cfg *cfg.Config
}

func NewGateway(c *cfg.Config) *Gateway {
	return &Gateway{cfg: c}
}

// Complete resolves the provider for model, then runs one prompt-in/text-out
// completion. Credential and model resolution fail before any network call.
func (g *Gateway) Complete(ctx context.Context, model, prompt, apiKey string) (string, error) {
	spec, err := resolve(model)
	if err != nil {
		return "", err
	}

	key := apiKey
	if key == "" {
		key = spec.defaultKey(g.cfg)
	}
	if key == "" {
		return "", fmt.Errorf("%w: no API key for provider %s (model %s)", ErrMissingCredential, spec.name, model)
	}

	p, err := spec.build(ctx, key, model)
	if err != nil {
		return "", fmt.Errorf("init provider %s: %w", spec.name, err)
	}
	defer releaseProvider(p)

	answer, err := p.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.Name(), err)
	}
	return answer, nil
}

// releaseProvider closes any connection state a provider holds. Providers are
// built per completion, so the connection lifetime is the call's lifetime.
func releaseProvider(p Provider) {
	if c, ok := p.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func resolve(model string) (*providerSpec, error) {
	for i := range providerTable {
		if strings.HasPrefix(model, providerTable[i].prefix) {
			return &providerTable[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
}
