package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	OllamaDimension    = 768

	DefaultOpenAIModel = "text-embedding-3-small"
	OpenAIDimension    = 1536
	openaiEndpoint     = "https://api.openai.com/v1/embeddings"

	MaxBatchSize = 100
)

// OllamaProvider calls a local Ollama instance's /api/embed endpoint.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an embedder targeting the given Ollama instance.
func NewOllamaProvider(baseURL, model string, cache *Cache) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		baseURL:   baseURL,
		model:     model,
		dimension: OllamaDimension,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		cache: cache,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(texts), MaxBatchSize)
	}

	// Serve what we can from cache; only miss texts hit the backend.
	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if o.cache != nil {
			if v, ok := o.cache.Get(CacheKey(o.Provider(), o.model, t)); ok {
				vectors[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fetched, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() ([][]float32, error) {
		return o.callAPI(ctx, missTexts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", types.ErrEmbeddingUnavailable, err)
	}

	for j, i := range missIdx {
		vectors[i] = fetched[j]
		if o.cache != nil {
			o.cache.Set(CacheKey(o.Provider(), o.model, texts[i]), fetched[j])
		}
	}
	return vectors, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	// Learn the model's true dimensionality from the first response.
	if len(result.Embeddings) > 0 && len(result.Embeddings[0]) > 0 {
		o.dimension = len(result.Embeddings[0])
	}
	return result.Embeddings, nil
}

func (o *OllamaProvider) Dimension() int   { return o.dimension }
func (o *OllamaProvider) Provider() string { return ProviderOllama }
func (o *OllamaProvider) Model() string    { return o.model }
func (o *OllamaProvider) Close() error     { return nil }

// OpenAIProvider calls the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI-backed embedder. An empty API key is an
// immediate configuration error, not a deferred request failure.
func NewOpenAIProvider(apiKey, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", types.ErrEmbeddingUnavailable)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: openaiEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(texts), MaxBatchSize)
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if p.cache != nil {
			if v, ok := p.cache.Get(CacheKey(p.Provider(), p.model, t)); ok {
				vectors[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fetched, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() ([][]float32, error) {
		return p.callAPI(ctx, missTexts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", types.ErrEmbeddingUnavailable, err)
	}

	for j, i := range missIdx {
		vectors[i] = fetched[j]
		if p.cache != nil {
			p.cache.Set(CacheKey(p.Provider(), p.model, texts[i]), fetched[j])
		}
	}
	return vectors, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openaiEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai embed returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (p *OpenAIProvider) Dimension() int   { return OpenAIDimension }
func (p *OpenAIProvider) Provider() string { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string    { return p.model }
func (p *OpenAIProvider) Close() error     { return nil }

// Unavailable is the embedder used when no backend is configured. Every
// call fails with types.ErrEmbeddingUnavailable so semantic search degrades
// to unsupported instead of silently falling back to text search.
type Unavailable struct{}

func (Unavailable) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: no backend configured", types.ErrEmbeddingUnavailable)
}

func (Unavailable) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: no backend configured", types.ErrEmbeddingUnavailable)
}

func (Unavailable) Dimension() int   { return 0 }
func (Unavailable) Provider() string { return ProviderNone }
func (Unavailable) Model() string    { return "" }
func (Unavailable) Close() error     { return nil }
