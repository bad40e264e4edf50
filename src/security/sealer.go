package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrUnsealFailed = errors.New("sealed value could not be opened")

// TokenSealer encrypts broker access tokens held in the session caches.
type TokenSealer struct {
	key [32]byte
}

// NewTokenSealer derives the box key from the first 32 bytes of secret.
func NewTokenSealer(secret string) (*TokenSealer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("seal key must be at least 32 bytes, got %d", len(secret))
	}
	s := &TokenSealer{}
	copy(s.key[:], secret[:32])
	return s, nil
}

// Seal returns nonce||box as URL-safe base64.
func (s *TokenSealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *TokenSealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(out), nil
}
