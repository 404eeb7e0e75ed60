package engine

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/lazypower/reverie/internal/metrics"
)

// CachedEmbedder memoizes another Embedder. Embeddings are deterministic for
// a given model and text, so entries never need invalidating.
type CachedEmbedder struct {
	inner   Embedder
	cache   *ristretto.Cache
	metrics *metrics.Recorder
}

// NewCachedEmbedder wraps inner with a cache holding up to size vectors.
func NewCachedEmbedder(inner Embedder, size int64, rec *metrics.Recorder) (*CachedEmbedder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache size must be positive, got %d", size)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache, metrics: rec}, nil
}

func (c *CachedEmbedder) Model() string   { return c.inner.Model() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns a copy of the cached vector, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.inner.Model() + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookup(true)
		return append([]float64(nil), v.([]float64)...), nil
	}
	c.metrics.CacheLookup(false)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]float64(nil), vec...), 1)
	return vec, nil
}

// ForAgent scopes the wrapped embedder to an agent. The scoped embedder
// shares this cache; keys carry the scoped model name.
func (c *CachedEmbedder) ForAgent(name string) (Embedder, error) {
	scoped, ok := c.inner.(AgentScoped)
	if !ok {
		return c, nil
	}
	inner, err := scoped.ForAgent(name)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: c.cache, metrics: c.metrics}, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachedEmbedder) Wait() { c.cache.Wait() }

// Close releases the cache's background goroutines.
func (c *CachedEmbedder) Close() { c.cache.Close() }
