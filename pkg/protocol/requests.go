package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrShortBody     = errors.New("frame body shorter than opcode")
)

// Request is a client to server message. The set of implementations is
// closed; DecodeRequest returns one of the types below.
type Request interface {
	Opcode() Opcode
	appendPayload(w *payloadWriter) error
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Login        string
	PasswordHash [PasswordHashSize]byte
}

// LoginRequest authenticates the session
type LoginRequest struct {
	Login        string
	PasswordHash [PasswordHashSize]byte
}

// ListRequest asks for every contact and message of the account
type ListRequest struct{}

// SendMessageRequest stores a message for ContactID
type SendMessageRequest struct {
	ContactID uint64
	Text      string
}

// AddContactRequest resolves a login to an account id
type AddContactRequest struct {
	Login string
}

func (RegisterRequest) Opcode() Opcode    { return OpRegister }
func (LoginRequest) Opcode() Opcode       { return OpLogin }
func (ListRequest) Opcode() Opcode        { return OpList }
func (SendMessageRequest) Opcode() Opcode { return OpSendMessage }
func (AddContactRequest) Opcode() Opcode  { return OpAddContact }

func (r RegisterRequest) appendPayload(w *payloadWriter) error {
	if err := w.str8(r.Login); err != nil {
		return err
	}
	w.raw(r.PasswordHash[:])
	return nil
}

func (r LoginRequest) appendPayload(w *payloadWriter) error {
	if err := w.str8(r.Login); err != nil {
		return err
	}
	w.raw(r.PasswordHash[:])
	return nil
}

func (ListRequest) appendPayload(*payloadWriter) error { return nil }

func (r SendMessageRequest) appendPayload(w *payloadWriter) error {
	w.u64(r.ContactID)
	return w.str16(r.Text)
}

func (r AddContactRequest) appendPayload(w *payloadWriter) error {
	return w.str8(r.Login)
}

// EncodeRequest encodes a request as a frame body: opcode followed by payload
func EncodeRequest(req Request) ([]byte, error) {
	w := newPayloadWriter(req.Opcode(), 64)
	if err := req.appendPayload(w); err != nil {
		return nil, fmt.Errorf("encode opcode %d: %w", req.Opcode(), err)
	}
	return w.buf, nil
}

// SplitOpcode returns the opcode and payload of a decrypted frame body
func SplitOpcode(body []byte) (Opcode, []byte, error) {
	if len(body) < OpcodeSize {
		return 0, nil, ErrShortBody
	}
	return Opcode(int16(binary.BigEndian.Uint16(body))), body[OpcodeSize:], nil
}

// DecodeRequest decodes a decrypted frame body received by the server.
// Payloads must match the opcode's shape exactly.
func DecodeRequest(body []byte) (Request, error) {
	op, payload, err := SplitOpcode(body)
	if err != nil {
		return nil, err
	}

	r := &payloadReader{buf: payload}
	var req Request

	switch op {
	case OpRegister, OpLogin:
		login, err := r.str8()
		if err != nil {
			return nil, err
		}
		hash, err := r.bytes(PasswordHashSize)
		if err != nil {
			return nil, err
		}
		if op == OpRegister {
			reg := RegisterRequest{Login: login}
			copy(reg.PasswordHash[:], hash)
			req = reg
		} else {
			lr := LoginRequest{Login: login}
			copy(lr.PasswordHash[:], hash)
			req = lr
		}

	case OpList:
		req = ListRequest{}

	case OpSendMessage:
		contactID, err := r.u64()
		if err != nil {
			return nil, err
		}
		text, err := r.str16()
		if err != nil {
			return nil, err
		}
		req = SendMessageRequest{ContactID: contactID, Text: text}

	case OpAddContact:
		login, err := r.str8()
		if err != nil {
			return nil, err
		}
		req = AddContactRequest{Login: login}

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
	}

	if err := r.done(); err != nil {
		return nil, fmt.Errorf("opcode %d: %w", op, err)
	}
	return req, nil
}
