// Package fieldcrypt provides reversible, authenticated encryption for
// individual database column values. Sensitive columns (locations, work
// descriptions, invoice amounts, line items) are stored as ciphertext and
// converted at the load/save boundary; lookups always happen on
// non-encrypted correlated columns.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt is returned when a ciphertext is malformed, was produced under
// a different key, or fails authentication. Callers must treat it as a hard
// failure: a value that cannot be decrypted is distinct from a null value.
var ErrDecrypt = errors.New("fieldcrypt: decryption failed")

// Codec encrypts and decrypts scalar string values with AES-256-GCM under a
// single process-wide key. The key is read-only after construction.
type Codec struct {
	aead cipher.AEAD
}

// New builds a Codec from a raw 32-byte AES key.
func New(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("fieldcrypt: key must be 32 bytes (got: %d)", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// EncryptString encrypts a single value and returns a printable ciphertext
// suitable for a text column. The payload is nonce || ciphertext, base64.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	// GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: read nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	payload := append(nonce, sealed...)
	return base64.RawStdEncoding.EncodeToString(payload), nil
}

// DecryptString verifies and decrypts a value produced by EncryptString.
func (c *Codec) DecryptString(ciphertext string) (string, error) {
	payload, err := base64.RawStdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecrypt)
	}

	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	nonce := payload[:nonceSize]
	sealed := payload[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plaintext), nil
}

// Encrypt encrypts a nullable value. Nil passes through unchanged so that
// NULL columns stay NULL.
func (c *Codec) Encrypt(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	out, err := c.EncryptString(*plaintext)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Decrypt decrypts a nullable value. Nil passes through unchanged; any
// non-nil value that fails to decrypt returns ErrDecrypt rather than nil,
// so callers can distinguish "no value" from "corrupt value".
func (c *Codec) Decrypt(ciphertext *string) (*string, error) {
	if ciphertext == nil {
		return nil, nil
	}
	out, err := c.DecryptString(*ciphertext)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
