// Package credentials encrypts provider API keys and 2FA shared secrets at
// rest. Blobs are AES-256-GCM sealed with a key derived from a process-wide
// secret and are safe to persist in any text column.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// blobPrefix identifies sealed values so operators can tell ciphertext from
// accidentally stored plaintext.
const blobPrefix = "cv1:"

// ErrCredentialCorrupt is returned when a stored blob cannot be decrypted.
// The error never carries the blob itself; callers must fail closed.
var ErrCredentialCorrupt = errors.New("credential corrupt")

type Store struct {
	aead cipher.AEAD
}

// NewStore derives the symmetric key from the configured secret.
func NewStore(secret string) (*Store, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("credential store requires an encryption key")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Store{aead: aead}, nil
}

// Encrypt seals plaintext into an opaque text blob.
func (s *Store) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return blobPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed or tampered input
// yields ErrCredentialCorrupt.
func (s *Store) Decrypt(opaque string) (string, error) {
	if !strings.HasPrefix(opaque, blobPrefix) {
		return "", ErrCredentialCorrupt
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(opaque, blobPrefix))
	if err != nil {
		return "", ErrCredentialCorrupt
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrCredentialCorrupt
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCredentialCorrupt
	}
	return string(plaintext), nil
}
