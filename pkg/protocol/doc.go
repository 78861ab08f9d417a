// Package protocol implements the ZenTalk chat wire protocol.
//
// The protocol package defines the frame format, the opcode table, the
// typed request and reply variants and the binary encodings of chat
// messages and contacts shared by the client and the server.
//
// # Frame Format
//
// Every frame on the TCP stream is:
//   - Length (4 bytes): big-endian size of the ciphertext that follows
//   - Nonce (12 bytes): fresh random AES-GCM nonce
//   - Ciphertext: AES-256-GCM sealed body with its 16 byte tag
//
// A declared length of zero is not a frame and is skipped. Lengths above
// the codec's MaxFrameSize are rejected and the stream is considered out of
// sync.
//
// # Body Format
//
// A decrypted body starts with a big-endian int16 opcode followed by the
// opcode's payload. The same numbers are reused in both directions:
//
// Client to server:
//   - 0 Register: u8 login length, login, 32 byte password pre-hash
//   - 1 Login: same payload as Register
//   - 2 List: no payload
//   - 3 SendMessage: u64 contact id, u16 text length, text
//   - 4 AddContact: u8 login length, login
//
// Server to client:
//   - 0 RegisterOK, 1 UnknownError, 2 LoginTaken, 3 BadLoginLength
//   - 4 Warning: u8 title length, title, u16 message length, message
//   - 5 BadCredentials, 6 LoginOK
//   - 7 ContactList: u32 count, contacts, u32 count, messages
//   - 8 ContactFound: u64 account id
//   - 9 ContactNotFound
//
// # Record Encoding
//
// All integers are big-endian and all strings are UTF-8 with a fixed width
// length prefix, never null terminated:
//   - Contact: u64 id, u8 name length, name
//   - ChatMessage: u64 id, u64 contact id, u8 sent-by-me, u16 text length, text
//
// # Usage Example
//
//	codec := protocol.NewCodec(cipher)
//
//	body, err := protocol.EncodeRequest(protocol.ListRequest{})
//	if err != nil {
//	    return err
//	}
//	if err := codec.WriteFrame(conn, body); err != nil {
//	    return err
//	}
//
//	plaintext, err := codec.ReadMessage(conn)
//	if err != nil {
//	    return err
//	}
//	reply, err := protocol.DecodeReply(plaintext)
//
// # Passwords
//
// The client never sends a raw password. It sends SHA3-256 of the password,
// the login and a pepper; the server salts that value again before storing
// it. See the crypto package.
package protocol
