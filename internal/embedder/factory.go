package embedder

import (
	"fmt"
	"os"
)

// Options select and configure a backend.
type Options struct {
	// Provider is one of "ollama", "openai", or "none".
	Provider string
	// Model overrides the backend's default model.
	Model string
	// BaseURL overrides the Ollama endpoint.
	BaseURL string
	// APIKey for OpenAI; falls back to OPENAI_API_KEY.
	APIKey string
	// CacheSize bounds the shared vector cache; 0 means the default.
	CacheSize int
	// MaxConcurrent bounds in-flight backend calls; 0 means unbounded.
	MaxConcurrent int
}

// New builds an Embedder from options. An unset or "none" provider returns
// the Unavailable embedder rather than an error, so indexing still works
// without a vector backend.
func New(opts Options) (Embedder, error) {
	var e Embedder

	switch opts.Provider {
	case ProviderOllama:
		e = NewOllamaProvider(opts.BaseURL, opts.Model, NewCache(opts.CacheSize))
	case ProviderOpenAI:
		key := opts.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		p, err := NewOpenAIProvider(key, opts.Model, NewCache(opts.CacheSize))
		if err != nil {
			return nil, err
		}
		e = p
	case ProviderNone, "":
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	return Limit(e, opts.MaxConcurrent), nil
}
