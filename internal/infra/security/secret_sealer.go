package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal. Unprefixed values are treated
// as plaintext, which lets operators seed secrets directly in SQL.
const sealedPrefix = "enc:v1:"

var ErrSealedWithoutKey = errors.New("value is sealed but no encryption key is configured")

// SecretSealer encrypts sensitive settings at rest with AES-GCM and a random
// nonce per value. A sealer built from an empty key stores values as-is.
type SecretSealer struct {
	gcm cipher.AEAD
}

// NewSecretSealer accepts a 16, 24 or 32 byte key (AES-128/192/256), or "".
func NewSecretSealer(key string) (*SecretSealer, error) {
	if key == "" {
		return &SecretSealer{}, nil
	}
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &SecretSealer{gcm: gcm}, nil
}

func (s *SecretSealer) Enabled() bool { return s.gcm != nil }

// Seal returns "enc:v1:" + base64(nonce || ciphertext).
func (s *SecretSealer) Seal(plaintext string) (string, error) {
	if s.gcm == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Plaintext values pass through unchanged.
func (s *SecretSealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s.gcm == nil {
		return "", ErrSealedWithoutKey
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := s.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
