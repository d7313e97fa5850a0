package avatar

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends selectable through AVATAR_CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendDisk   = "disk"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config validation errors
var (
	// ErrInvalidCacheBackend is returned when CacheBackend is not one of the known backends
	ErrInvalidCacheBackend = errors.New("unknown cache backend")
	// ErrMissingCachePath is returned when the disk backend is selected without a CachePath
	ErrMissingCachePath = errors.New("CachePath is required for the disk cache backend")
	// ErrMissingRedisURL is returned when the redis backend is selected without a RedisURL
	ErrMissingRedisURL = errors.New("RedisURL is required for the redis cache backend")
	// ErrInvalidFetchTimeout is returned when FetchTimeout is not positive
	ErrInvalidFetchTimeout = errors.New("FetchTimeout must be positive")
	// ErrInvalidMaxSourceSize is returned when MaxSourceSizeMB is not positive
	ErrInvalidMaxSourceSize = errors.New("MaxSourceSizeMB must be positive")
	// ErrInvalidCacheTTL is returned when CacheTTL is not positive
	ErrInvalidCacheTTL = errors.New("CacheTTL must be positive")
	// ErrInvalidPort is returned when Port is empty
	ErrInvalidPort = errors.New("Port is required")
)

// Config holds the configuration for the avatar service.
type Config struct {
	// SharedSecret is the HMAC key shared with the appview.
	SharedSecret string

	// Port is the HTTP listen port for avatar requests.
	Port string

	// MetricsAddr is the listen address for the Prometheus endpoint. Empty disables it.
	MetricsAddr string

	// CacheBackend selects the response cache: memory, disk, redis or none.
	CacheBackend string

	// CacheTTL is how long a cached response is served.
	CacheTTL time.Duration

	// CacheSize is the entry capacity of the memory cache and the local tier of the redis cache.
	CacheSize int

	// CachePath is the filesystem path for the disk backend.
	CachePath string

	// CacheMaxGB is the disk backend's size limit in gigabytes.
	CacheMaxGB int

	// CleanupInterval is how often the disk backend runs TTL and LRU cleanup.
	// Set to 0 to disable background cleanup.
	CleanupInterval time.Duration

	// RedisURL is the connection URL for the redis backend.
	RedisURL string

	// FetchTimeout bounds every outbound request.
	FetchTimeout time.Duration

	// MaxSourceSizeMB is the maximum allowed size for fetched avatars in megabytes.
	MaxSourceSizeMB int

	// BlueskyAPIURL is the base URL of the public Bluesky AppView.
	BlueskyAPIURL string

	// PLCURL is the PLC directory used to resolve did:plc identities.
	PLCURL string

	// AllowPrivateNetworks lets outbound requests reach private and loopback addresses.
	// Only for local development.
	AllowPrivateNetworks bool
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.SharedSecret == "" {
		return ErrMissingSecret
	}
	if c.Port == "" {
		return ErrInvalidPort
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	if c.MaxSourceSizeMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxSourceSize, c.MaxSourceSizeMB)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidCacheTTL, c.CacheTTL)
	}

	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendDisk:
		if c.CachePath == "" {
			return ErrMissingCachePath
		}
		if c.CacheMaxGB <= 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidCacheMaxSize, c.CacheMaxGB)
		}
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.CacheBackend)
	}

	return nil
}

// DefaultConfig returns a Config with sensible default values. SharedSecret has no default.
func DefaultConfig() Config {
	return Config{
		Port:            "8787",
		MetricsAddr:     ":9787",
		CacheBackend:    CacheBackendMemory,
		CacheTTL:        CacheMaxAge,
		CacheSize:       DefaultMemoryCacheSize,
		CachePath:       "/var/cache/avatar",
		CacheMaxGB:      5,
		CleanupInterval: 1 * time.Hour,
		FetchTimeout:    15 * time.Second,
		MaxSourceSizeMB: DefaultMaxSourceSizeMB,
		BlueskyAPIURL:   DefaultBlueskyAPIURL,
		PLCURL:          "https://plc.directory",
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Uses defaults for any missing environment variables.
//
// Environment variables:
//   - AVATAR_SHARED_SECRET: HMAC key shared with the appview (required)
//   - AVATAR_PORT: listen port (default: 8787)
//   - AVATAR_METRICS_ADDR: metrics listen address, set empty to disable (default: ":9787")
//   - AVATAR_CACHE_BACKEND: memory, disk, redis or none (default: memory)
//   - AVATAR_CACHE_TTL_SECONDS: cached response lifetime (default: 43200)
//   - AVATAR_CACHE_SIZE: memory cache entries (default: 10000)
//   - AVATAR_CACHE_PATH: disk cache path (default: "/var/cache/avatar")
//   - AVATAR_CACHE_MAX_GB: disk cache size limit (default: 5)
//   - AVATAR_CACHE_CLEANUP_INTERVAL_MINUTES: disk cleanup interval, 0 to disable (default: 60)
//   - AVATAR_REDIS_URL: redis connection URL
//   - AVATAR_FETCH_TIMEOUT_SECONDS: outbound request timeout (default: 15)
//   - AVATAR_MAX_SOURCE_SIZE_MB: max avatar size in MB (default: 10)
//   - AVATAR_BSKY_API_URL: Bluesky AppView base URL (default: "https://public.api.bsky.app")
//   - AVATAR_PLC_URL: PLC directory URL (default: "https://plc.directory")
//   - AVATAR_ALLOW_PRIVATE_NETWORKS: "true"/"1" to allow private targets (default: false)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.SharedSecret = os.Getenv("AVATAR_SHARED_SECRET")

	if v := os.Getenv("AVATAR_PORT"); v != "" {
		cfg.Port = v
	}

	if v, ok := os.LookupEnv("AVATAR_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}

	if v := os.Getenv("AVATAR_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv("AVATAR_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTL = time.Duration(n) * time.Second
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_CACHE_TTL_SECONDS value, using default",
				"value", v,
				"default_seconds", int(cfg.CacheTTL.Seconds()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheSize = n
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_CACHE_SIZE value, using default",
				"value", v,
				"default", cfg.CacheSize,
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}

	if v := os.Getenv("AVATAR_CACHE_MAX_GB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxGB = n
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_CACHE_MAX_GB value, using default",
				"value", v,
				"default", cfg.CacheMaxGB,
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_CACHE_CLEANUP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CleanupInterval = time.Duration(n) * time.Minute
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_CACHE_CLEANUP_INTERVAL_MINUTES value, using default",
				"value", v,
				"default_minutes", int(cfg.CleanupInterval.Minutes()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	if v := os.Getenv("AVATAR_FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchTimeout = time.Duration(n) * time.Second
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_FETCH_TIMEOUT_SECONDS value, using default",
				"value", v,
				"default_seconds", int(cfg.FetchTimeout.Seconds()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_MAX_SOURCE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSourceSizeMB = n
		} else {
			slog.Warn("[AVATAR] invalid AVATAR_MAX_SOURCE_SIZE_MB value, using default",
				"value", v,
				"default", cfg.MaxSourceSizeMB,
				"error", err,
			)
		}
	}

	if v := os.Getenv("AVATAR_BSKY_API_URL"); v != "" {
		cfg.BlueskyAPIURL = strings.TrimSuffix(v, "/")
	}

	if v := os.Getenv("AVATAR_PLC_URL"); v != "" {
		cfg.PLCURL = strings.TrimSuffix(v, "/")
	}

	if v := os.Getenv("AVATAR_ALLOW_PRIVATE_NETWORKS"); v != "" {
		cfg.AllowPrivateNetworks = v == "true" || v == "1"
	}

	return cfg
}
