package avatar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Sign returns the lowercase hex HMAC-SHA256 of the actor identifier.
// This is what the appview puts in the first path segment.
func Sign(secret []byte, actor string) string {
	return hex.EncodeToString(computeMAC(secret, actor))
}

// Verify reports whether signatureHex is the HMAC-SHA256 of actor under secret.
// Malformed hex is a verification failure, not an error.
func Verify(secret []byte, actor, signatureHex string) bool {
	expected := computeMAC(secret, actor)

	slog.Debug("[AVATAR] avatar request for: "+actor,
		"computed_signature", hex.EncodeToString(expected),
		"provided_signature", signatureHex,
	)

	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	return hmac.Equal(provided, expected)
}

// IsHexSignature reports whether s is a non-empty, even-length hex string.
func IsHexSignature(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func computeMAC(secret []byte, actor string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(actor))
	return mac.Sum(nil)
}

// Verifier holds the process-wide shared secret. It is read-only after construction.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify checks signatureHex against the actor identifier.
func (v *Verifier) Verify(actor, signatureHex string) bool {
	return Verify(v.secret, actor, signatureHex)
}
