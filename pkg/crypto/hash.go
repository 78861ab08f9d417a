package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/sha3"
)

const (
	// PasswordHashSize is the size of both the client pre-hash and the stored hash
	PasswordHashSize = 32

	// SaltSize is the size of the per-account salt
	SaltSize = 8
)

// PepperHash is the client side password hash: SHA3-256(password || login || pepper).
// The raw password never leaves the client.
func PepperHash(password, login string, pepper []byte) [PasswordHashSize]byte {
	h := sha3.New256()
	h.Write([]byte(password))
	h.Write([]byte(login))
	h.Write(pepper)

	var out [PasswordHashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SaltHash is the server side hash stored per account: SHA3-256(prehash || salt)
func SaltHash(prehash, salt []byte) [PasswordHashSize]byte {
	buf := make([]byte, 0, len(prehash)+len(salt))
	buf = append(buf, prehash...)
	buf = append(buf, salt...)
	return sha3.Sum256(buf)
}

// GenerateSalt generates a random per-account salt
func GenerateSalt() ([]byte, error) {
	return GenerateNonce(SaltSize)
}

// GenerateNonce generates a random nonce
func GenerateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	_, err := rand.Read(nonce)
	if err != nil {
		return nil, err
	}
	return nonce, nil
}

// VerifyPassword recomputes the salted hash and compares it with the stored
// hash in constant time
func VerifyPassword(prehash, salt, stored []byte) bool {
	computed := SaltHash(prehash, salt)
	return subtle.ConstantTimeCompare(computed[:], stored) == 1
}
