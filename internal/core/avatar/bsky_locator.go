package avatar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBlueskyAPIURL is the public Bluesky AppView.
const DefaultBlueskyAPIURL = "https://public.api.bsky.app"

// blueskyProfileResponse is the part of app.bsky.actor.getProfile we read.
type blueskyProfileResponse struct {
	Avatar string `json:"avatar,omitempty"`
}

// BlueskyLocator asks the public Bluesky API for the actor's profile and
// uses its avatar URL as-is.
type BlueskyLocator struct {
	baseURL string
	client  *http.Client
}

// NewBlueskyLocator creates a BlueskyLocator. An empty baseURL uses DefaultBlueskyAPIURL.
func NewBlueskyLocator(baseURL string, client *http.Client) *BlueskyLocator {
	if baseURL == "" {
		baseURL = DefaultBlueskyAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BlueskyLocator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Name identifies the locator in logs and metrics.
func (l *BlueskyLocator) Name() string {
	return "bluesky"
}

// Locate makes exactly one getProfile call.
func (l *BlueskyLocator) Locate(ctx context.Context, actor string) (string, bool) {
	avatarURL, err := l.fetchAvatarURL(ctx, actor)
	if err != nil {
		slog.Debug("[AVATAR] bluesky profile lookup failed",
			"actor", actor,
			"error", err,
		)
		return "", false
	}
	if avatarURL == "" {
		return "", false
	}
	return avatarURL, true
}

func (l *BlueskyLocator) fetchAvatarURL(ctx context.Context, actor string) (string, error) {
	apiURL := fmt.Sprintf("%s/xrpc/app.bsky.actor.getProfile?actor=%s", l.baseURL, url.QueryEscape(actor))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var profile blueskyProfileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRecordBytes)).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to decode profile: %w", err)
	}

	return profile.Avatar, nil
}
