package avatar

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrInvalidCacheBasePath is returned when the cache base path is empty
	ErrInvalidCacheBasePath = errors.New("cache base path cannot be empty")
	// ErrInvalidCacheMaxSize is returned when maxSizeGB is not positive
	ErrInvalidCacheMaxSize = errors.New("cache max size must be positive")
)

// diskEntry is the on-disk representation of a cached response.
type diskEntry struct {
	StoredAt time.Time `msgpack:"stored_at"`
	Response Response  `msgpack:"response"`
}

// DiskCache implements Cache using the filesystem for storage.
// Entry path format: {basePath}/{hash[0:2]}/{hash}, where hash is the sha256 of the request URL.
// File modification time tracks last access for LRU eviction.
type DiskCache struct {
	basePath  string
	maxSizeGB int
	ttl       time.Duration
}

var _ Cache = (*DiskCache)(nil)

// NewDiskCache creates a new DiskCache with the specified base path, maximum size, and TTL.
func NewDiskCache(basePath string, maxSizeGB int, ttl time.Duration) (*DiskCache, error) {
	if basePath == "" {
		return nil, ErrInvalidCacheBasePath
	}
	if maxSizeGB <= 0 {
		return nil, ErrInvalidCacheMaxSize
	}
	if ttl <= 0 {
		ttl = CacheMaxAge
	}
	return &DiskCache{
		basePath:  basePath,
		maxSizeGB: maxSizeGB,
		ttl:       ttl,
	}, nil
}

// entryPath constructs the full filesystem path for a cached item.
func (c *DiskCache) entryPath(key string) string {
	h := hashKey(key)
	return filepath.Join(c.basePath, h[:2], h)
}

// Get retrieves the cached response for key. Expired entries are removed and reported as a miss.
// Updates the file's modification time on access for LRU tracking.
func (c *DiskCache) Get(ctx context.Context, key string) (*Response, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyCacheKey
	}

	path := c.entryPath(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry diskEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		slog.Warn("[AVATAR] discarding unreadable cache entry",
			"path", path,
			"error", err,
		)
		return nil, false, nil
	}

	if time.Since(entry.StoredAt) > c.ttl {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("[AVATAR] failed to remove expired cache entry",
				"path", path,
				"error", rmErr,
			)
		}
		return nil, false, nil
	}

	now := time.Now()
	if chtimesErr := os.Chtimes(path, now, now); chtimesErr != nil {
		slog.Warn("[AVATAR] failed to update mtime for LRU tracking",
			"path", path,
			"error", chtimesErr,
		)
	}

	return &entry.Response, true, nil
}

// Set stores resp under key. The write goes to a temp file that is renamed
// into place, so readers never see a partial entry.
func (c *DiskCache) Set(ctx context.Context, key string, resp *Response) error {
	if err := validateEntry(key, resp); err != nil {
		return err
	}

	data, err := msgpack.Marshal(&diskEntry{
		StoredAt: time.Now().UTC(),
		Response: *resp,
	})
	if err != nil {
		return err
	}

	path := c.entryPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// storedResponse describes one response file found on disk.
type storedResponse struct {
	path       string
	size       int64
	lastAccess time.Time
}

// listResponses walks the cache tree and returns every stored response and their total size.
// Leftover temp files from interrupted writes are included so they age out too.
func (c *DiskCache) listResponses() ([]storedResponse, int64, error) {
	var (
		stored []storedResponse
		total  int64
	)

	err := filepath.WalkDir(c.basePath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat; skip it.
			return nil
		}

		stored = append(stored, storedResponse{path: path, size: info.Size(), lastAccess: info.ModTime()})
		total += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, 0, err
	}

	return stored, total, nil
}

// removeResponse deletes one stored response, reporting whether it was removed.
func removeResponse(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("[AVATAR] failed to remove cached avatar response",
			"path", path,
			"error", err,
		)
	}
	return false
}

// GetCacheSize returns the bytes currently used by stored responses.
func (c *DiskCache) GetCacheSize() (int64, error) {
	_, total, err := c.listResponses()
	return total, err
}

// EvictLRU drops the least recently served responses until the cache fits in maxSizeGB.
// Returns the number of responses removed.
func (c *DiskCache) EvictLRU() (int, error) {
	stored, total, err := c.listResponses()
	if err != nil {
		return 0, err
	}

	limit := int64(c.maxSizeGB) << 30
	if total <= limit {
		return 0, nil
	}

	sort.Slice(stored, func(i, j int) bool {
		return stored[i].lastAccess.Before(stored[j].lastAccess)
	})

	evicted := 0
	for _, r := range stored {
		if total <= limit {
			break
		}
		if removeResponse(r.path) {
			total -= r.size
			evicted++
		}
	}

	slog.Info("[AVATAR] evicted least recently served avatars",
		"responses_evicted", evicted,
		"cache_bytes", total,
		"limit_bytes", limit,
	)
	return evicted, nil
}

// CleanExpired removes responses nobody has been served within the TTL. An entry
// idle that long was necessarily stored longer ago than that too.
func (c *DiskCache) CleanExpired() (int, error) {
	stored, _, err := c.listResponses()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-c.ttl)
	expired := 0
	for _, r := range stored {
		if r.lastAccess.Before(cutoff) && removeResponse(r.path) {
			expired++
		}
	}

	if expired > 0 {
		slog.Info("[AVATAR] removed expired avatar responses",
			"responses_expired", expired,
			"ttl", c.ttl,
		)
	}
	return expired, nil
}

// Cleanup expires stale responses, then evicts by size. Returns the total removed.
func (c *DiskCache) Cleanup() (int, error) {
	expired, err := c.CleanExpired()
	if err != nil {
		return 0, err
	}
	evicted, err := c.EvictLRU()
	return expired + evicted, err
}

// StartCleanupJob runs Cleanup every interval until the returned func is called.
// A non-positive interval starts nothing.
func (c *DiskCache) StartCleanupJob(interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		slog.Info("[AVATAR] avatar cache sweeper disabled")
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.sweep(ctx, interval)
	return cancel
}

func (c *DiskCache) sweep(ctx context.Context, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[AVATAR] avatar cache sweeper panicked", "panic", r)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("[AVATAR] avatar cache sweeper started",
		"path", c.basePath,
		"every", interval,
		"ttl", c.ttl,
		"max_gb", c.maxSizeGB,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[AVATAR] avatar cache sweeper stopped")
			return
		case <-ticker.C:
			if _, err := c.Cleanup(); err != nil {
				slog.Error("[AVATAR] avatar cache sweep failed", "error", err)
			}
		}
	}
}
