// Package secret seals OAuth tokens before they are written to the database.
package secret

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
	prefix    = "sb1:"
)

var (
	ErrInvalidKey    = errors.New("token key must be 32 bytes hex encoded")
	ErrMalformed     = errors.New("sealed value is malformed")
	ErrDecryptFailed = errors.New("sealed value could not be opened")
)

// Sealer seals and opens short secrets.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Box is a Sealer backed by NaCl secretbox.
type Box struct {
	key [keySize]byte
}

// NewBox parses a hex encoded 32 byte key.
func NewBox(hexKey string) (*Box, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(out), nil
}

// Plain stores values as is. Only for local development without a key.
type Plain struct{}

func (Plain) Seal(plaintext string) (string, error) { return plaintext, nil }
func (Plain) Open(sealed string) (string, error)    { return sealed, nil }

// FromConfig returns a Box when a key is configured and Plain otherwise.
func FromConfig(hexKey string) (Sealer, bool, error) {
	if strings.TrimSpace(hexKey) == "" || strings.HasPrefix(hexKey, "${") {
		return Plain{}, false, nil
	}
	b, err := NewBox(hexKey)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
