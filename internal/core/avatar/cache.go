package avatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrEmptyCacheKey is returned when a cache operation is given an empty key
	ErrEmptyCacheKey = errors.New("cache key is empty")
	// ErrNilResponse is returned when Set is called without a response
	ErrNilResponse = errors.New("cannot cache nil response")
)

// Cache stores finished responses keyed by the full request URL.
// Implementations must be safe for concurrent use and atomic per key.
type Cache interface {
	// Get returns the cached response for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) (*Response, bool, error)

	// Set stores resp under key until the store's TTL elapses.
	Set(ctx context.Context, key string, resp *Response) error
}

// NopCache never stores anything. Every Get is a miss.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(ctx context.Context, key string) (*Response, bool, error) {
	return nil, false, nil
}

// Set discards the response.
func (NopCache) Set(ctx context.Context, key string, resp *Response) error {
	return nil
}

func validateEntry(key string, resp *Response) error {
	if key == "" {
		return ErrEmptyCacheKey
	}
	if resp == nil {
		return ErrNilResponse
	}
	return nil
}

// hashKey turns a request URL into a fixed-length, filesystem and redis safe name.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
