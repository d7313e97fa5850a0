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

	"github.com/ipfs/go-cid"

	"Avatar/internal/atproto/identity"
)

const (
	// ProfileCollection is the record collection holding the actor's avatar blob.
	ProfileCollection = "sh.tangled.actor.profile"

	// ProfileRecordKey is the record key of the single profile record.
	ProfileRecordKey = "self"

	// maxRecordBytes bounds how much of a getRecord response is read.
	maxRecordBytes = 1 << 20
)

// profileRecordResponse is the com.atproto.repo.getRecord output. The avatar
// field is left untyped because PDSes return more than one blob shape.
type profileRecordResponse struct {
	Value struct {
		Avatar any `json:"avatar"`
	} `json:"value"`
}

// PDSLocator resolves the actor's identity and reads the avatar blob
// reference out of their profile record on their own PDS.
type PDSLocator struct {
	resolver identity.Resolver
	client   *http.Client
}

// NewPDSLocator creates a PDSLocator. The resolver is shared across requests.
func NewPDSLocator(resolver identity.Resolver, client *http.Client) (*PDSLocator, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver", ErrNilDependency)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PDSLocator{resolver: resolver, client: client}, nil
}

// Name identifies the locator in logs and metrics.
func (l *PDSLocator) Name() string {
	return "pds"
}

// Locate returns {pds}/xrpc/com.atproto.sync.getBlob?did={did}&cid={cid} for the actor's profile avatar.
func (l *PDSLocator) Locate(ctx context.Context, actor string) (string, bool) {
	ident, err := l.resolver.Resolve(ctx, actor)
	if err != nil || ident == nil {
		slog.Debug("[AVATAR] failed to resolve identity",
			"actor", actor,
			"error", err,
		)
		return "", false
	}

	did := ident.DID
	pdsEndpoint := strings.TrimSuffix(ident.PDSURL, "/")
	if pdsEndpoint == "" {
		slog.Debug("[AVATAR] no PDS endpoint found",
			"actor", actor,
			"did", did,
		)
		return "", false
	}

	avatarBlob, err := l.fetchProfileAvatar(ctx, pdsEndpoint, did)
	if err != nil {
		slog.Warn("[AVATAR] error fetching profile avatar from PDS",
			"actor", actor,
			"did", did,
			"error", err,
		)
		return "", false
	}
	if avatarBlob == nil {
		return "", false
	}

	blobCID, ok := extractBlobCID(avatarBlob)
	if !ok {
		slog.Warn("[AVATAR] could not extract valid CID from avatar blob",
			"actor", actor,
			"avatar_blob", avatarBlob,
		)
		return "", false
	}
	// Still an avatar; a bad ref fails at fetch time, not here.
	if _, err := cid.Decode(blobCID); err != nil {
		slog.Warn("[AVATAR] avatar blob carries a malformed CID",
			"actor", actor,
			"cid", blobCID,
			"error", err,
		)
	}

	return fmt.Sprintf("%s/xrpc/com.atproto.sync.getBlob?did=%s&cid=%s",
		pdsEndpoint, did, url.QueryEscape(blobCID)), true
}

// fetchProfileAvatar returns value.avatar of the profile record, or nil when
// the record or the field does not exist. Transport and decode failures are errors.
func (l *PDSLocator) fetchProfileAvatar(ctx context.Context, pdsEndpoint, did string) (any, error) {
	recordURL := fmt.Sprintf("%s/xrpc/com.atproto.repo.getRecord?repo=%s&collection=%s&rkey=%s",
		pdsEndpoint, did, ProfileCollection, ProfileRecordKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("[AVATAR] no profile record found on PDS",
			"did", did,
			"status", resp.StatusCode,
		)
		return nil, nil
	}

	var record profileRecordResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRecordBytes)).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode profile record: %w", err)
	}

	if isEmptyValue(record.Value.Avatar) {
		slog.Debug("[AVATAR] profile record has no avatar",
			"did", did,
		)
		return nil, nil
	}

	return record.Value.Avatar, nil
}

// extractBlobCID pulls the CID out of an avatar field. Precedence:
//  1. avatar.ref is a string
//  2. avatar.ref["$link"]
//  3. avatar itself is a string
func extractBlobCID(avatar any) (string, bool) {
	var link any

	switch v := avatar.(type) {
	case map[string]any:
		switch ref := v["ref"].(type) {
		case string:
			link = ref
		case map[string]any:
			link = ref["$link"]
		}
	case string:
		link = v
	}

	s, ok := link.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// isEmptyValue treats JSON null, false, 0 and "" as an absent field.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	}
	return false
}
