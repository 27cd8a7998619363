package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize matches the teacher's CachedEmbedder default
// (internal/embed/cached.go), reused here for query-time-only caching:
// index-time batches never go through this cache, only repeated
// searches.
const DefaultQueryCacheSize = 1000

// QueryCache wraps a Supervisor with an LRU cache keyed by query text,
// so repeated searches skip the child round trip entirely. It is
// grounded on internal/embed/cached.go's CachedEmbedder, narrowed to
// the query path only.
type QueryCache struct {
	inner *Supervisor
	cache *lru.Cache[string, []float32]
}

// NewQueryCache wraps sup with an LRU cache of the given size (0 uses
// DefaultQueryCacheSize).
func NewQueryCache(sup *Supervisor, size int) *QueryCache {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &QueryCache{inner: sup, cache: cache}
}

func (c *QueryCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedQuery returns the cached vector for text if present; otherwise
// it embeds via the supervisor with is_query=true, bypassing the
// Embedding Queue entirely, and caches the result.
func (c *QueryCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vectors, err := c.inner.EmbedWithRetry(ctx, []string{text}, true)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for a single-text query", len(vectors))
	}

	c.cache.Add(key, vectors[0])
	return vectors[0], nil
}
