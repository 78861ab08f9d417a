package protocol

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Opcode is the big-endian int16 that starts every decrypted frame body
type Opcode int16

// Client to server opcodes
const (
	OpRegister    Opcode = 0
	OpLogin       Opcode = 1
	OpList        Opcode = 2
	OpSendMessage Opcode = 3
	OpAddContact  Opcode = 4
)

// Server to client opcodes
const (
	OpRegisterOK      Opcode = 0
	OpUnknownError    Opcode = 1
	OpLoginTaken      Opcode = 2
	OpBadLoginLength  Opcode = 3
	OpWarning         Opcode = 4 // Pushed by the server, not a reply
	OpBadCredentials  Opcode = 5
	OpLoginOK         Opcode = 6
	OpContactList     Opcode = 7
	OpContactFound    Opcode = 8
	OpContactNotFound Opcode = 9
)

// Size limits
const (
	// OpcodeSize is the size of the opcode prefix of a frame body
	OpcodeSize = 2

	// PasswordHashSize is the size of the client pre-hash sent on register and login
	PasswordHashSize = 32

	MinLoginLength = 3  // runes
	MaxLoginLength = 16 // runes
	MaxLoginBytes  = 64

	// MaxNameLength is the longest name a u8 length prefix can carry
	MaxNameLength = 0xFF

	// MaxTextLength is the longest text a u16 length prefix can carry
	MaxTextLength = 0xFFFF
)

// UnnamedContact is shown for contacts whose account no longer resolves
const UnnamedContact = "<unnamed>"

// NormalizeLogin returns the NFC form of a login. Client and server both
// normalize so that visually identical logins map to the same account.
func NormalizeLogin(login string) string {
	return norm.NFC.String(login)
}

// ValidLogin checks the login length rules: 3 to 16 characters and at most
// 64 bytes of UTF-8
func ValidLogin(login string) bool {
	if !utf8.ValidString(login) || len(login) > MaxLoginBytes {
		return false
	}

	n := utf8.RuneCountInString(login)
	return n >= MinLoginLength && n <= MaxLoginLength
}
