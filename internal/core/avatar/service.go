// Package avatar produces profile avatars for atproto actors.
//
// An avatar is located by trying, in order:
//   - the actor's own PDS (profile record -> avatar blob)
//   - the public Bluesky profile
//
// and falls back to a deterministic placeholder when neither has one. Located
// avatars are fetched once, optionally cover-cropped to the tiny preset, and
// packaged with caching headers. Response caching is done by the HTTP layer
// through the Cache interface defined here.
package avatar

import (
	"context"
	"fmt"
	"log/slog"
)

// Service defines the interface for the avatar service.
type Service interface {
	// GetAvatar runs the locator chain for the actor and returns the finished response.
	GetAvatar(ctx context.Context, actor string, tiny bool) (*Response, error)
}

// AvatarService implements Service.
type AvatarService struct {
	locators  []Locator
	fetcher   Fetcher
	processor Processor
}

// NewService creates a new AvatarService. Locators are tried in the given order.
// Returns an error if any required dependency is nil.
func NewService(fetcher Fetcher, processor Processor, locators ...Locator) (*AvatarService, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher", ErrNilDependency)
	}
	if processor == nil {
		return nil, fmt.Errorf("%w: processor", ErrNilDependency)
	}
	for i, l := range locators {
		if l == nil {
			return nil, fmt.Errorf("%w: locator %d", ErrNilDependency, i)
		}
	}

	return &AvatarService{
		locators:  locators,
		fetcher:   fetcher,
		processor: processor,
	}, nil
}

// GetAvatar tries each locator in turn; the first one to find a source wins
// and later locators are not called. With no source, a placeholder is returned.
// Once a source is found, a failed fetch is returned as an error rather than
// downgraded to a placeholder.
func (s *AvatarService) GetAvatar(ctx context.Context, actor string, tiny bool) (*Response, error) {
	for _, locator := range s.locators {
		sourceURL, ok := locator.Locate(ctx, actor)
		if ok {
			locatorResults.WithLabelValues(locator.Name(), "found").Inc()
			return s.FetchAndPackage(ctx, sourceURL, tiny)
		}

		locatorResults.WithLabelValues(locator.Name(), "not_found").Inc()
		slog.Debug("[AVATAR] no avatar from locator, falling back",
			"actor", actor,
			"locator", locator.Name(),
		)
	}

	slog.Debug("[AVATAR] no avatar found, generating placeholder",
		"actor", actor,
	)
	return PlaceholderResponse(actor, tiny), nil
}

// FetchAndPackage fetches the avatar at sourceURL and wraps it in a cacheable Response.
// With tiny set, the image is cover-cropped to TinyPreset; if the image cannot
// be transcoded the original bytes are served.
func (s *AvatarService) FetchAndPackage(ctx context.Context, sourceURL string, tiny bool) (*Response, error) {
	data, contentType, err := s.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	if tiny {
		preset, err := GetPreset(TinyPresetName)
		if err != nil {
			return nil, err
		}
		processed, processedType, procErr := s.processor.Process(data, preset)
		if procErr != nil {
			slog.Warn("[AVATAR] tiny transcode failed, serving original image",
				"source", sourceURL,
				"error", procErr,
			)
		} else {
			data = processed
			contentType = processedType
		}
	}

	return &Response{
		Body:         data,
		ContentType:  contentType,
		CacheControl: CacheControl,
	}, nil
}
