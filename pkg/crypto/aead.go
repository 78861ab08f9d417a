package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the size of the pre-shared AES-256 key
	KeySize = 32

	// NonceSize is the AES-GCM nonce size prepended to every ciphertext
	NonceSize = 12

	// TagSize is the GCM authentication tag size appended by Seal
	TagSize = 16

	// Overhead is the number of bytes Encrypt adds to a plaintext
	Overhead = NonceSize + TagSize
)

var (
	ErrInvalidKeySize       = errors.New("invalid key size")
	ErrInvalidNonceLength   = errors.New("invalid nonce length")
	ErrAuthenticationFailed = errors.New("message authentication failed")
)

// Cipher seals and opens frame bodies with AES-256-GCM under a pre-shared key.
// It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a cipher for a 256-bit key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// Encrypt returns nonce || ciphertext || tag. A fresh random nonce is drawn
// for every call; a nonce is never reused under the same key.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return c.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt
func (c *Cipher) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < NonceSize {
		return nil, ErrInvalidNonceLength
	}

	plaintext, err := c.aead.Open(nil, frame[:NonceSize], frame[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return plaintext, nil
}
