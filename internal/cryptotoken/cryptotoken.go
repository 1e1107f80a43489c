// Package cryptotoken provides AES-256-GCM authenticated encryption for
// provider OAuth tokens at rest. The encryption key is read once from the
// ENCRYPTION_KEY environment variable at process startup (see NewFromEnv) and
// never threaded through call sites thereafter, per SPEC_FULL.md §4.1/§9.
package cryptotoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const keyLen = 32 // AES-256

// Cipher encrypts and decrypts JSON token blobs for storage.
type Cipher struct {
	key []byte
}

// ParseKey decodes raw (the ENCRYPTION_KEY env value) as either 64 hex
// characters or 44-character standard base64, both of which must decode to
// exactly 32 bytes. Any other shape fails with a message naming the
// requirement, per §4.1.
func ParseKey(raw string) ([]byte, error) {
	if b, err := hex.DecodeString(raw); err == nil && len(b) == keyLen {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == keyLen {
		return b, nil
	}
	return nil, fmt.Errorf("ENCRYPTION_KEY must decode to exactly %d bytes as hex(64 chars) or base64(44 chars)", keyLen)
}

// New constructs a Cipher from an already-validated 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keyLen, len(key))
	}
	return &Cipher{key: key}, nil
}

// NewFromEnv parses raw via ParseKey and constructs a Cipher.
func NewFromEnv(raw string) (*Cipher, error) {
	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Encrypt seals plaintext and returns base64(nonce(12) || ciphertext||tag).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptJSON is a convenience wrapper for JSON token blobs.
func (c *Cipher) EncryptJSON(v []byte) (string, error) {
	return c.Encrypt(v)
}

// errDecrypt is the single opaque error returned for any decryption
// failure (wrong key, truncated payload, tampered tag) per §4.1 -- callers
// must never see a partial plaintext or a more specific cause.
var errDecrypt = errors.New("decrypt: authentication failed or ciphertext malformed")

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errDecrypt
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errDecrypt
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errDecrypt
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errDecrypt
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errDecrypt
	}
	return plaintext, nil
}
