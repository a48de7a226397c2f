package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenSize256 is the size in bytes of session tokens and generated
// secrets. Encoded it is 43 base64url characters.
const TokenSize256 = 32

var sessionTokenLen = base64.RawURLEncoding.EncodedLen(TokenSize256)

// GenerateToken creates a cryptographically secure random token of size
// bytes, returned base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewSessionToken returns a fresh 256-bit session token and the fingerprint
// its record is stored under.
func NewSessionToken() (token, fingerprint string, err error) {
	token, err = GenerateToken(TokenSize256)
	if err != nil {
		return "", "", err
	}
	return token, FingerprintToken(token), nil
}

// IsSessionToken reports whether s has the shape of a token produced by
// NewSessionToken. Anything else can be treated as absent without a lookup.
func IsSessionToken(s string) bool {
	if len(s) != sessionTokenLen {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// Session records are keyed by fingerprint so a leaked database does not
// hand out live session tokens.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
