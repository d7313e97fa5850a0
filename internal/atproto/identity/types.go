package identity

import "time"

// Identity is the subset of a resolved atproto identity the avatar service needs.
type Identity struct {
	DID        string    // Decentralized Identifier (e.g., "did:plc:abc123")
	Handle     string    // Human-readable handle, "handle.invalid" if it failed verification
	PDSURL     string    // Personal Data Server endpoint, may carry a trailing slash
	ResolvedAt time.Time // When this identity was resolved
}
