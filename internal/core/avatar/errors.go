package avatar

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSecret is returned when no shared secret is configured for signature verification.
	ErrMissingSecret = errors.New("shared secret is not configured")

	// ErrInvalidPreset is returned when a preset name is not found in the preset registry.
	ErrInvalidPreset = errors.New("invalid image preset")

	// ErrFetchFailed is returned when fetching avatar bytes fails before a response status is known.
	ErrFetchFailed = errors.New("failed to fetch avatar")

	// ErrFetchTimeout is returned when an avatar fetch exceeds the configured timeout.
	ErrFetchTimeout = errors.New("avatar fetch timed out")

	// ErrUpstreamStatus is returned when the avatar host answers with a non-success status.
	ErrUpstreamStatus = errors.New("avatar host returned non-success status")

	// ErrUnsupportedFormat is returned when the source image format cannot be processed.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageTooLarge is returned when the source image exceeds the maximum allowed size.
	ErrImageTooLarge = errors.New("source image exceeds size limit")

	// ErrProcessingFailed is returned when image processing fails for any reason.
	ErrProcessingFailed = errors.New("image processing failed")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)

// UpstreamError carries the status code of a failed avatar fetch so the
// handler can pass it through to the caller unchanged.
type UpstreamError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrUpstreamStatus.Error(), e.StatusCode, e.URL)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamStatus
}
