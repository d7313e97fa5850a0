package identity

import "context"

// Resolver maps an actor identifier to its DID and PDS endpoint.
// The identifier can be either:
// - A handle (e.g., "alice.bsky.social")
// - A DID (e.g., "did:plc:abc123")
//
// Implementations must be safe for concurrent use; a single instance is
// built at startup and shared by every request.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*Identity, error)
}
