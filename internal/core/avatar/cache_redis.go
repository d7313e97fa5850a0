package avatar

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisLocalCacheSize is the size of the in-process TinyLFU tier in front of redis.
const DefaultRedisLocalCacheSize = 1_000

// RedisCache shares responses across service instances through redis, with a
// small local TinyLFU tier in front.
type RedisCache struct {
	data *cache.Cache
	ttl  time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to redisURL and checks the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, localSize int) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return newRedisCache(rdb, ttl, localSize), nil
}

// newRedisCache builds the cache around an existing client. A nil client keeps
// only the local tier.
func newRedisCache(rdb *redis.Client, ttl time.Duration, localSize int) *RedisCache {
	if ttl <= 0 {
		ttl = CacheMaxAge
	}
	if localSize <= 0 {
		localSize = DefaultRedisLocalCacheSize
	}

	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(localSize, time.Minute),
	}
	if rdb != nil {
		opts.Redis = rdb
	}

	return &RedisCache{
		data: cache.New(opts),
		ttl:  ttl,
	}
}

func redisCacheKey(key string) string {
	return "avatar/" + hashKey(key)
}

// Get returns the cached response for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*Response, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyCacheKey
	}
	var resp Response
	err := c.data.Get(ctx, redisCacheKey(key), &resp)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

// Set stores resp under key for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, resp *Response) error {
	if err := validateEntry(key, resp); err != nil {
		return err
	}
	return c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(key),
		Value: resp,
		TTL:   c.ttl,
	})
}
