package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}
	return c
}

func TestEncryptDecrypt(t *testing.T) {
	c := newTestCipher(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"opcode only", []byte{0x00, 0x02}},
		{"text", []byte("Hello! This is a secret message that must be encrypted.")},
		{"large", bytes.Repeat([]byte{0xAB}, 70000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := c.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if len(encrypted) != len(tt.plaintext)+Overhead {
				t.Errorf("ciphertext length = %d, want %d", len(encrypted), len(tt.plaintext)+Overhead)
			}

			decrypted, err := c.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Error("Decrypted data doesn't match original")
			}
		})
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	c := newTestCipher(t)
	plaintext := []byte("same plaintext")

	first, _ := c.Encrypt(plaintext)
	second, _ := c.Encrypt(plaintext)

	if bytes.Equal(first[:NonceSize], second[:NonceSize]) {
		t.Error("nonce reused between two encryptions")
	}
	if bytes.Equal(first, second) {
		t.Error("identical ciphertexts for the same plaintext")
	}
}

func TestDecryptTampered(t *testing.T) {
	c := newTestCipher(t)

	encrypted, err := c.Encrypt([]byte("tamper with me"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Flip every bit of nonce, body and tag in turn
	for i := 0; i < len(encrypted); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), encrypted...)
			tampered[i] ^= 1 << bit

			plaintext, err := c.Decrypt(tampered)
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Fatalf("byte %d bit %d: Decrypt() error = %v, want ErrAuthenticationFailed", i, bit, err)
			}
			if plaintext != nil {
				t.Fatalf("byte %d bit %d: Decrypt() returned plaintext for tampered input", i, bit)
			}
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	encrypted, _ := newTestCipher(t).Encrypt([]byte("Secret message"))

	_, err := newTestCipher(t).Decrypt(encrypted)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestDecryptShortInput(t *testing.T) {
	c := newTestCipher(t)

	for _, n := range []int{0, 1, NonceSize - 1} {
		_, err := c.Decrypt(make([]byte, n))
		if !errors.Is(err, ErrInvalidNonceLength) {
			t.Errorf("Decrypt(%d bytes) error = %v, want ErrInvalidNonceLength", n, err)
		}
	}

	// A bare nonce without a tag is long enough for the nonce but fails authentication
	_, err := c.Decrypt(make([]byte, NonceSize))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt(nonce only) error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestNewCipherInvalidKey(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33} {
		_, err := NewCipher(make([]byte, n))
		if !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("NewCipher(%d bytes) error = %v, want ErrInvalidKeySize", n, err)
		}
	}
}
