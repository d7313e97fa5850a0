package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// userAgent identifies the service to PDSes and the Bluesky API.
const userAgent = "Avatar-Service/1.0"

// DefaultMaxSourceSizeMB is the default maximum source image size if not configured.
const DefaultMaxSourceSizeMB = 10

// Fetcher retrieves avatar bytes from a resolved source URL.
type Fetcher interface {
	// Fetch returns the body and declared content type of the source.
	// A non-success status is reported as *UpstreamError.
	Fetch(ctx context.Context, sourceURL string) ([]byte, string, error)
}

// HTTPFetcher implements Fetcher with a single GET per call. It never retries.
type HTTPFetcher struct {
	client       *http.Client
	maxSizeBytes int64
}

// NewHTTPFetcher creates a new HTTPFetcher.
// maxSizeMB specifies the maximum allowed image size in megabytes (0 uses default of 10MB).
func NewHTTPFetcher(client *http.Client, maxSizeMB int) *HTTPFetcher {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSourceSizeMB
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPFetcher{
		client:       client,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
	}
}

// Fetch retrieves the avatar at sourceURL.
// Returns:
//   - *UpstreamError (wrapping ErrUpstreamStatus) for any non-2xx status
//   - ErrFetchTimeout if the request times out or context is cancelled
//   - ErrImageTooLarge if the body exceeds the configured limit
//   - ErrFetchFailed for any other error
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		upstreamFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrFetchTimeout, ctx.Err())
		}
		if isTimeoutError(err) {
			return nil, "", fmt.Errorf("%w: request timed out", ErrFetchTimeout)
		}
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	upstreamFetchDuration.WithLabelValues(statusClass(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &UpstreamError{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > 0 && resp.ContentLength > f.maxSizeBytes {
		return nil, "", fmt.Errorf("%w: content length %d exceeds maximum %d bytes",
			ErrImageTooLarge, resp.ContentLength, f.maxSizeBytes)
	}

	// Read one byte past the limit to detect oversized bodies without a Content-Length.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSizeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxSizeBytes {
		return nil, "", fmt.Errorf("%w: response body exceeds maximum %d bytes",
			ErrImageTooLarge, f.maxSizeBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// isTimeoutError checks if the error is a timeout-related error.
func isTimeoutError(err error) bool {
	if te, ok := err.(interface{ Timeout() bool }); ok {
		return te.Timeout()
	}
	return false
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
