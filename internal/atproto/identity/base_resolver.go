package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	indigoIdentity "github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// baseResolver implements Resolver using Indigo's identity resolution
type baseResolver struct {
	directory indigoIdentity.Directory
}

// newBaseResolver creates a new base resolver using Indigo
func newBaseResolver(plcURL string, httpClient *http.Client) *baseResolver {
	// BaseDirectory handles DNS and HTTPS handle resolution plus did:plc / did:web documents.
	// No caching layer: every request resolves fresh.
	dir := &indigoIdentity.BaseDirectory{
		PLCURL:     plcURL,
		HTTPClient: *httpClient,
	}

	return &baseResolver{
		directory: dir,
	}
}

// Resolve resolves a handle or DID to its DID and PDS endpoint
func (r *baseResolver) Resolve(ctx context.Context, identifier string) (*Identity, error) {
	identifier = strings.TrimSpace(identifier)

	if identifier == "" {
		return nil, &ErrInvalidIdentifier{
			Identifier: identifier,
			Reason:     "identifier cannot be empty",
		}
	}

	ident, err := r.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return &Identity{
		DID:        ident.DID.String(),
		Handle:     ident.Handle.String(),
		PDSURL:     ident.PDSEndpoint(),
		ResolvedAt: time.Now().UTC(),
	}, nil
}

// lookup parses the identifier as a DID or a handle and asks the directory.
func (r *baseResolver) lookup(ctx context.Context, identifier string) (*indigoIdentity.Identity, error) {
	var (
		ident *indigoIdentity.Identity
		err   error
	)

	if strings.HasPrefix(identifier, "did:") {
		did, parseErr := syntax.ParseDID(identifier)
		if parseErr != nil {
			return nil, &ErrInvalidIdentifier{
				Identifier: identifier,
				Reason:     fmt.Sprintf("invalid DID format: %v", parseErr),
			}
		}
		ident, err = r.directory.LookupDID(ctx, did)
	} else {
		handle, parseErr := syntax.ParseHandle(identifier)
		if parseErr != nil {
			return nil, &ErrInvalidIdentifier{
				Identifier: identifier,
				Reason:     fmt.Sprintf("invalid handle format: %v", parseErr),
			}
		}
		ident, err = r.directory.LookupHandle(ctx, handle)
	}

	if err != nil {
		return nil, classifyLookupError(identifier, err)
	}
	if ident == nil {
		return nil, &ErrNotFound{Identifier: identifier}
	}
	return ident, nil
}

// classifyLookupError splits directory failures into "does not exist" and everything else.
func classifyLookupError(identifier string, err error) error {
	errStr := err.Error()
	if errors.Is(err, indigoIdentity.ErrDIDNotFound) ||
		errors.Is(err, indigoIdentity.ErrHandleNotFound) ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "NoRecordsFound") ||
		strings.Contains(errStr, "404") {
		return &ErrNotFound{
			Identifier: identifier,
			Reason:     errStr,
		}
	}

	return &ErrResolutionFailed{
		Identifier: identifier,
		Reason:     errStr,
	}
}
