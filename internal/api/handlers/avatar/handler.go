// Package avatar provides the HTTP handler for signed avatar requests.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"Avatar/internal/core/avatar"
)

// Banner is served on the root path.
const Banner = `This is Tangled's avatar service. It fetches your pretty avatar from your PDS, Bluesky, or generates a placeholder.
You can't use this directly unfortunately since all requests are signed and may only originate from the appview.`

// Service defines the interface for the avatar service.
// This interface is implemented by the avatar package's service layer.
type Service interface {
	// GetAvatar locates, fetches and packages the avatar for actor.
	// tiny requests the 32x32 variant.
	GetAvatar(ctx context.Context, actor string, tiny bool) (*avatar.Response, error)
}

// Verifier checks request signatures.
type Verifier interface {
	Verify(actor, signatureHex string) bool
}

// Handler handles HTTP requests for avatars.
type Handler struct {
	service  Service
	verifier Verifier
	cache    avatar.Cache
}

// NewHandler creates a new avatar handler. A nil cache disables response caching.
func NewHandler(service Service, verifier Verifier, cache avatar.Cache) *Handler {
	if cache == nil {
		cache = avatar.NopCache{}
	}
	return &Handler{
		service:  service,
		verifier: verifier,
		cache:    cache,
	}
}

// HandleRoot handles GET / with a plain text banner. It is neither signed nor cached.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(Banner)); err != nil {
		slog.Warn("[AVATAR] failed to write banner", "error", err)
	}
}

// HandleAvatar handles GET /{signatureHex}/{actor}[?size=tiny]
// Cached responses are returned before the signature is checked.
func (h *Handler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	if r.URL.EscapedPath() == "/" || r.URL.EscapedPath() == "" {
		h.HandleRoot(w, r)
		return
	}

	ctx := r.Context()
	key := cacheKey(r)

	cached, found, err := h.cache.Get(ctx, key)
	switch {
	case err != nil:
		avatar.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("[AVATAR] cache lookup failed, treating as miss",
			"key", key,
			"error", err,
		)
	case found:
		avatar.CacheLookups.WithLabelValues("hit").Inc()
		avatar.RequestsTotal.WithLabelValues("cache_hit").Inc()
		writeAvatar(w, cached)
		return
	default:
		avatar.CacheLookups.WithLabelValues("miss").Inc()
	}

	signatureHex, actor, ok := parsePath(r.URL.EscapedPath())
	if !ok {
		avatar.RequestsTotal.WithLabelValues("bad_url").Inc()
		writeErrorResponse(w, http.StatusBadRequest, "Bad URL")
		return
	}
	if !avatar.IsHexSignature(signatureHex) {
		avatar.RequestsTotal.WithLabelValues("bad_url").Inc()
		writeErrorResponse(w, http.StatusBadRequest, "Bad URL")
		return
	}
	if !h.verifier.Verify(actor, signatureHex) {
		avatar.RequestsTotal.WithLabelValues("invalid_signature").Inc()
		writeErrorResponse(w, http.StatusForbidden, "Invalid signature")
		return
	}

	tiny := r.URL.Query().Get("size") == "tiny"

	resp, err := h.service.GetAvatar(ctx, actor, tiny)
	if err != nil {
		handleServiceError(w, actor, err)
		return
	}

	if err := h.cache.Set(ctx, key, resp); err != nil {
		slog.Warn("[AVATAR] failed to cache response",
			"key", key,
			"error", err,
		)
	}

	if resp.Placeholder {
		avatar.RequestsTotal.WithLabelValues("placeholder").Inc()
	} else {
		avatar.RequestsTotal.WithLabelValues("avatar").Inc()
	}
	writeAvatar(w, resp)
}

// parsePath splits /{signatureHex}/{actor}/... and ignores extra segments.
func parsePath(escapedPath string) (signatureHex, actor string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(escapedPath, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// cacheKey is the full inbound URL as the client requested it.
func cacheKey(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// handleServiceError converts service errors to appropriate HTTP responses.
func handleServiceError(w http.ResponseWriter, actor string, err error) {
	var upstreamErr *avatar.UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		avatar.RequestsTotal.WithLabelValues("upstream_error").Inc()
		slog.Warn("[AVATAR] avatar host returned an error",
			"actor", actor,
			"status", upstreamErr.StatusCode,
			"url", upstreamErr.URL,
		)
		writeErrorResponse(w, upstreamErr.StatusCode, fmt.Sprintf("failed to fetch avatar for %s.", actor))
	case errors.Is(err, avatar.ErrFetchTimeout):
		avatar.RequestsTotal.WithLabelValues("upstream_error").Inc()
		slog.Warn("[AVATAR] avatar fetch timed out",
			"actor", actor,
			"error", err,
		)
		writeErrorResponse(w, http.StatusGatewayTimeout, fmt.Sprintf("failed to fetch avatar for %s.", actor))
	case errors.Is(err, avatar.ErrImageTooLarge):
		avatar.RequestsTotal.WithLabelValues("upstream_error").Inc()
		slog.Warn("[AVATAR] avatar exceeds size limit",
			"actor", actor,
			"error", err,
		)
		writeErrorResponse(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch avatar for %s.", actor))
	default:
		avatar.RequestsTotal.WithLabelValues("error").Inc()
		slog.Error("[AVATAR] error fetching avatar",
			"actor", actor,
			"error", err,
		)
		writeErrorResponse(w, http.StatusInternalServerError, "error fetching avatar: "+err.Error())
	}
}

func writeAvatar(w http.ResponseWriter, resp *avatar.Response) {
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", resp.CacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		slog.Warn("[AVATAR] failed to write avatar response",
			"content_type", resp.ContentType,
			"error", err,
		)
	}
}

// writeErrorResponse writes a plain text error response.
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(message)); err != nil {
		slog.Warn("[AVATAR] failed to write error response",
			"status", status,
			"message", message,
			"error", err,
		)
	}
}
