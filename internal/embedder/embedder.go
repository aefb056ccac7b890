package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/codecompass/codecompass-mcp/pkg/types"
)

// Embedder is the pluggable embedding backend. Same text plus same
// provider/model yields the same vector; callers cache by content hash.
type Embedder interface {
	// Embed generates a vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed vector dimensionality for this backend,
	// validated when vectors enter a collection.
	Dimension() int

	// Provider and Model identify the backend for staleness checks.
	Provider() string
	Model() string

	Close() error
}

// Cache is an in-memory LRU of vectors keyed by content hash. It is safe to
// share across roots when the provider/model match, since the key includes
// both.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// DefaultCacheSize bounds the shared embedding cache.
const DefaultCacheSize = 10000

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so caller mutations cannot
// pollute the cache.
func (c *Cache) Get(key string) ([]float32, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector with automatic LRU eviction.
func (c *Cache) Set(key string, v []float32) {
	c.cache.Add(key, v)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// CacheKey builds the cache key for a text under a given backend.
func CacheKey(provider, model, text string) string {
	h := sha256.Sum256([]byte(text))
	return provider + "/" + model + "/" + hex.EncodeToString(h[:])
}

// Limited wraps an Embedder with an independent concurrency bound, so the
// backend is never driven at filesystem-walk parallelism.
type Limited struct {
	inner Embedder
	sem   *semaphore.Weighted
}

// Limit bounds concurrent backend calls to n. n <= 0 means unbounded.
func Limit(e Embedder, n int) Embedder {
	if n <= 0 {
		return e
	}
	return &Limited{inner: e, sem: semaphore.NewWeighted(int64(n))}
}

func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.Embed(ctx, text)
}

func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.EmbedBatch(ctx, texts)
}

func (l *Limited) Dimension() int   { return l.inner.Dimension() }
func (l *Limited) Provider() string { return l.inner.Provider() }
func (l *Limited) Model() string    { return l.inner.Model() }
func (l *Limited) Close() error     { return l.inner.Close() }

// validateBatch rejects empty inputs before any backend call.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", types.ErrEmbeddingUnavailable)
	}
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("text at index %d is empty", i)
		}
	}
	return nil
}
