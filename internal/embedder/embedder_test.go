package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(4)

	key := CacheKey("ollama", "nomic-embed-text", "hello")
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []float32{0.1, 0.2, 0.3})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)

	// Mutating the returned slice must not change the cached copy.
	got[0] = 99
	again, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, float32(0.1), again[0])
}

func TestCacheKeyDistinguishesBackends(t *testing.T) {
	a := CacheKey("ollama", "nomic-embed-text", "same text")
	b := CacheKey("openai", "text-embedding-3-small", "same text")
	c := CacheKey("ollama", "other-model", "same text")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestUnavailableEmbedder(t *testing.T) {
	var e Embedder = Unavailable{}

	_, err := e.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)

	assert.Equal(t, ProviderNone, e.Provider())
	assert.Equal(t, 0, e.Dimension())
	assert.NoError(t, e.Close())
}

func TestOllamaEmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{float32(i), 1.0}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaProvider(srv.URL, "test-model", NewCache(16))

	vectors, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1}, vectors[0])
	assert.Equal(t, []float32{1, 1}, vectors[1])
	assert.Equal(t, 2, e.Dimension())

	// Second call with the same inputs is served from cache.
	_, err = e.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaPartialCacheHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Only the miss should reach the backend.
		require.Equal(t, []string{"fresh"}, req.Input)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{7, 7}}})
	}))
	defer srv.Close()

	cache := NewCache(16)
	cache.Set(CacheKey(ProviderOllama, "test-model", "cached"), []float32{1, 2})

	e := NewOllamaProvider(srv.URL, "test-model", cache)
	vectors, err := e.EmbedBatch(context.Background(), []string{"cached", "fresh"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vectors[0])
	assert.Equal(t, []float32{7, 7}, vectors[1])
}

func TestOllamaBackendDownIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaProvider(srv.URL, "test-model", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := e.Embed(ctx, "text")
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestOpenAIEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := openaiEmbedResponse{}
		// Return out of order to exercise index-based placement.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", "test-model", nil)
	require.NoError(t, err)
	p.endpoint = srv.URL

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, vectors[0])
	assert.Equal(t, []float32{1}, vectors[1])
	assert.Equal(t, []float32{2}, vectors[2])
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "", nil)
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, false},
		{"empty slice", nil, true},
		{"empty text", []string{"a", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBatch(tt.texts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	var attempts int
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
		return 0, errors.New("always fails")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimitBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	inner := &countingEmbedder{inFlight: &inFlight, peak: &peak}

	e := Limit(inner, 2)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = e.Embed(context.Background(), "x")
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFactory(t *testing.T) {
	e, err := New(Options{Provider: ProviderNone})
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, e.Provider())

	e, err = New(Options{Provider: ProviderOllama, Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, e.Provider())
	assert.Equal(t, "m", e.Model())

	_, err = New(Options{Provider: "bogus"})
	assert.Error(t, err)
}

type countingEmbedder struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := c.inFlight.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	c.inFlight.Add(-1)
	return []float32{1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := c.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int   { return 1 }
func (c *countingEmbedder) Provider() string { return "counting" }
func (c *countingEmbedder) Model() string    { return "counting" }
func (c *countingEmbedder) Close() error     { return nil }
