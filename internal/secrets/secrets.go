// Package secrets encrypts integration tokens at rest with NaCl secretbox.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "enc:v1:"
)

var (
	// ErrDecrypt is returned for tampered ciphertext or a wrong key
	ErrDecrypt = errors.New("secrets: decryption failed")
	// ErrNoKey is returned when an encrypted value is read without a key
	ErrNoKey = errors.New("secrets: value is encrypted but no key is configured")
)

// Box seals and opens short secrets. A Box without a key passes values through.
type Box struct {
	key *[keySize]byte
}

// ParseKey accepts a 64-char hex string or a raw 32-byte string
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) == keySize*2 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if len(s) == keySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("secret key must be %d raw bytes or %d hex chars", keySize, keySize*2)
}

// New creates a Box. An empty key disables encryption.
func New(key []byte) (*Box, error) {
	if len(key) == 0 {
		return &Box{}, nil
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", keySize, len(key))
	}
	b := &Box{key: new([keySize]byte)}
	copy(b.key[:], key)
	return b, nil
}

// Enabled reports whether values are encrypted
func (b *Box) Enabled() bool {
	return b != nil && b.key != nil
}

// Seal encrypts plaintext; without a key it returns plaintext unchanged
func (b *Box) Seal(plaintext string) (string, error) {
	if !b.Enabled() || plaintext == "" {
		return plaintext, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the
// encryption prefix are returned as stored.
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, nil
	}
	if !b.Enabled() {
		return "", ErrNoKey
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
