// Package secretbox seals small secrets, such as the stored token
// pair, with AES-256-GCM. Sealed output is base64 so it can be written
// to a text file as-is.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

type Box struct {
	aead cipher.AEAD
}

// New builds a Box from a base64-encoded 32-byte key.
func New(base64Key string) (*Box, error) {
	if base64Key == "" {
		return nil, errors.New("missing token encryption key")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode token encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("token encryption key must decode to 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh nonce and returns the
// base64-encoded, nonce-prefixed ciphertext.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := b.aead.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open reverses Seal. It fails on truncated input, a tampered
// ciphertext, or a key mismatch.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(sealed)))
	n, err := base64.StdEncoding.Decode(raw, sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed entry: %w", err)
	}
	raw = raw[:n]
	if len(raw) < b.aead.NonceSize() {
		return nil, errors.New("sealed entry too short")
	}
	return b.aead.Open(nil, raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():], nil)
}
