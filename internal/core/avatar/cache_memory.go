package avatar

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryCacheSize is the number of responses kept by MemoryCache when unset.
const DefaultMemoryCacheSize = 10_000

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	data *expirable.LRU[string, *Response]
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache holding up to capacity responses for ttl each.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultMemoryCacheSize
	}
	if ttl <= 0 {
		ttl = CacheMaxAge
	}
	return &MemoryCache{
		data: expirable.NewLRU[string, *Response](capacity, nil, ttl),
	}
}

// Get returns the cached response for key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*Response, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyCacheKey
	}
	resp, ok := c.data.Get(key)
	if !ok {
		return nil, false, nil
	}
	return resp, true, nil
}

// Set stores resp under key.
func (c *MemoryCache) Set(ctx context.Context, key string, resp *Response) error {
	if err := validateEntry(key, resp); err != nil {
		return err
	}
	c.data.Add(key, resp)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.data.Len()
}
