package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey = errors.New("invalid key")
)

// GenerateKey generates a random AES-256 key
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// KeyHex formats a key the way it is written in configuration files
func KeyHex(key []byte) string {
	return strings.ToUpper(hex.EncodeToString(key))
}

// ParseKeyHex parses a hex encoded AES-256 key. Whitespace is ignored.
func ParseKeyHex(s string) ([]byte, error) {
	key, err := ParseHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}

	return key, nil
}

// ParseHex decodes a hex string, ignoring whitespace and case
func ParseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	return hex.DecodeString(s)
}
