package protocol

import "fmt"

// Reply is a server to client message, either a direct response to a
// Request or a pushed warning
type Reply interface {
	Opcode() Opcode
	appendPayload(w *payloadWriter) error
}

// StatusReply carries one of the payload-less reply opcodes:
// 0, 1, 2, 3, 5, 6 and 9
type StatusReply struct {
	Op Opcode
}

// ContactListReply answers a ListRequest
type ContactListReply struct {
	Contacts []Contact
	Messages []ChatMessage
}

// ContactFoundReply answers an AddContactRequest for an existing login
type ContactFoundReply struct {
	ID uint64
}

// WarningReply is pushed by the server to report a failure or a shutdown
type WarningReply struct {
	Title   string
	Message string
}

func (r StatusReply) Opcode() Opcode    { return r.Op }
func (ContactListReply) Opcode() Opcode  { return OpContactList }
func (ContactFoundReply) Opcode() Opcode { return OpContactFound }
func (WarningReply) Opcode() Opcode      { return OpWarning }

func (StatusReply) appendPayload(*payloadWriter) error { return nil }

func (r ContactListReply) appendPayload(w *payloadWriter) error {
	w.u32(uint32(len(r.Contacts)))
	for _, c := range r.Contacts {
		if err := c.appendTo(w); err != nil {
			return err
		}
	}

	w.u32(uint32(len(r.Messages)))
	for _, m := range r.Messages {
		if err := m.appendTo(w); err != nil {
			return err
		}
	}
	return nil
}

func (r ContactFoundReply) appendPayload(w *payloadWriter) error {
	w.u64(r.ID)
	return nil
}

func (r WarningReply) appendPayload(w *payloadWriter) error {
	if err := w.str8(r.Title); err != nil {
		return err
	}
	return w.str16(r.Message)
}

// isStatus reports whether op is a reply opcode without payload
func isStatus(op Opcode) bool {
	switch op {
	case OpRegisterOK, OpUnknownError, OpLoginTaken, OpBadLoginLength,
		OpBadCredentials, OpLoginOK, OpContactNotFound:
		return true
	}
	return false
}

// EncodeReply encodes a reply as a frame body
func EncodeReply(reply Reply) ([]byte, error) {
	if sr, ok := reply.(StatusReply); ok && !isStatus(sr.Op) {
		return nil, fmt.Errorf("%w: %d is not a status reply", ErrUnknownOpcode, sr.Op)
	}

	w := newPayloadWriter(reply.Opcode(), 16)
	if err := reply.appendPayload(w); err != nil {
		return nil, fmt.Errorf("encode reply %d: %w", reply.Opcode(), err)
	}
	return w.buf, nil
}

// DecodeReply decodes a decrypted frame body received by the client
func DecodeReply(body []byte) (Reply, error) {
	op, payload, err := SplitOpcode(body)
	if err != nil {
		return nil, err
	}

	r := &payloadReader{buf: payload}
	var reply Reply

	switch {
	case isStatus(op):
		reply = StatusReply{Op: op}

	case op == OpContactList:
		list, err := decodeContactList(r)
		if err != nil {
			return nil, err
		}
		reply = list

	case op == OpContactFound:
		id, err := r.u64()
		if err != nil {
			return nil, err
		}
		reply = ContactFoundReply{ID: id}

	case op == OpWarning:
		title, err := r.str8()
		if err != nil {
			return nil, err
		}
		msg, err := r.str16()
		if err != nil {
			return nil, err
		}
		reply = WarningReply{Title: title, Message: msg}

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
	}

	if err := r.done(); err != nil {
		return nil, fmt.Errorf("reply %d: %w", op, err)
	}
	return reply, nil
}

func decodeContactList(r *payloadReader) (ContactListReply, error) {
	var list ContactListReply

	count, err := r.u32()
	if err != nil {
		return list, err
	}
	// Counts come from the peer; never preallocate more than the body can hold
	list.Contacts = make([]Contact, 0, min(int(count), r.remaining()/contactFixedSize))
	for i := uint32(0); i < count; i++ {
		var c Contact
		if err := c.readFrom(r); err != nil {
			return list, fmt.Errorf("contact %d: %w", i, err)
		}
		list.Contacts = append(list.Contacts, c)
	}

	count, err = r.u32()
	if err != nil {
		return list, err
	}
	list.Messages = make([]ChatMessage, 0, min(int(count), r.remaining()/chatMessageFixedSize))
	for i := uint32(0); i < count; i++ {
		var m ChatMessage
		if err := m.readFrom(r); err != nil {
			return list, fmt.Errorf("message %d: %w", i, err)
		}
		list.Messages = append(list.Messages, m)
	}

	return list, nil
}
