package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrUnsealFailed is returned for any value that was not produced by Seal
// under the same key and purpose, including tampered or truncated values.
var ErrUnsealFailed = errors.New("cryptox: unseal failed")

// Sealer provides authenticated encryption (AES-256-GCM) for small values
// handed to clients, such as the session token inside the session cookie.
// The client can neither read nor alter a sealed value.
//
// Output format (base64url, no padding): [12-byte nonce][ciphertext][16-byte tag]
type Sealer struct {
	aead    cipher.AEAD
	purpose []byte
}

// NewSealer derives a 32-byte key from keyMaterial with SHA-256. purpose is
// bound in as additional data so a value sealed for one use cannot be
// replayed in another.
func NewSealer(keyMaterial, purpose string) (*Sealer, error) {
	if keyMaterial == "" {
		return nil, errors.New("cryptox: empty sealing key")
	}
	key := sha256.Sum256([]byte(keyMaterial))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm, purpose: []byte(purpose)}, nil
}

// Seal encrypts and authenticates plaintext with a random nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, plaintext, s.purpose)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Every failure collapses into ErrUnsealFailed.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrUnsealFailed
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize+s.aead.Overhead() {
		return nil, ErrUnsealFailed
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, s.purpose)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}
