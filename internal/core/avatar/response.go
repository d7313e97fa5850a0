package avatar

import "time"

const (
	// CacheMaxAge is how long a produced avatar may be served from cache.
	CacheMaxAge = 12 * time.Hour

	// CacheControl is attached to every successful avatar and placeholder response.
	CacheControl = "public, max-age=43200"

	// DefaultContentType is used when the avatar host does not declare one.
	DefaultContentType = "image/jpeg"
)

// Response is a finished avatar ready to be written to the client and stored in the cache.
type Response struct {
	Body         []byte `msgpack:"body"`
	ContentType  string `msgpack:"content_type"`
	CacheControl string `msgpack:"cache_control"`
	Placeholder  bool   `msgpack:"placeholder"`
}
