package embedding

import (
	"context"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 4096

// CachedClient memoizes embeddings by exact text. The cache is process-wide
// and holds no agent state, so it is shared by every loop.
type CachedClient struct {
	next  domain.EmbeddingClient
	cache *lru.Cache[string, []float32]
}

func NewCachedClient(next domain.EmbeddingClient, size int) (*CachedClient, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedClient{next: next, cache: cache}, nil
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *CachedClient) Len() int {
	return c.cache.Len()
}
