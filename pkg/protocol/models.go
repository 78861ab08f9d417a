package protocol

import "fmt"

// ChatMessage is one message of a conversation. ContactID is the other
// party; SentByMe is relative to the account that received the record.
// A message created locally before the server assigned an id has ID 0.
type ChatMessage struct {
	ID        uint64
	ContactID uint64
	SentByMe  bool
	Text      string
}

// Wire size without the text: id, contact id, sent-by-me flag, text length
const chatMessageFixedSize = 8 + 8 + 1 + 2

// Encode encodes the message as u64 id, u64 contactId, u8 sentByMe, u16 len, text
func (m ChatMessage) Encode() ([]byte, error) {
	w := &payloadWriter{buf: make([]byte, 0, chatMessageFixedSize+len(m.Text))}
	if err := m.appendTo(w); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Decode decodes a message produced by Encode
func (m *ChatMessage) Decode(buf []byte) error {
	r := &payloadReader{buf: buf}
	if err := m.readFrom(r); err != nil {
		return err
	}
	return r.done()
}

func (m ChatMessage) appendTo(w *payloadWriter) error {
	w.u64(m.ID)
	w.u64(m.ContactID)
	if m.SentByMe {
		w.u8(1)
	} else {
		w.u8(0)
	}
	if err := w.str16(m.Text); err != nil {
		return fmt.Errorf("message %d: %w", m.ID, err)
	}
	return nil
}

func (m *ChatMessage) readFrom(r *payloadReader) error {
	var err error
	if m.ID, err = r.u64(); err != nil {
		return err
	}
	if m.ContactID, err = r.u64(); err != nil {
		return err
	}
	sentByMe, err := r.u8()
	if err != nil {
		return err
	}
	m.SentByMe = sentByMe != 0
	m.Text, err = r.str16()
	return err
}

// Contact is another account known to the user. Identity is ID; Name is
// for display only.
type Contact struct {
	ID   uint64
	Name string
}

const contactFixedSize = 8 + 1

// Encode encodes the contact as u64 id, u8 len, name
func (c Contact) Encode() ([]byte, error) {
	w := &payloadWriter{buf: make([]byte, 0, contactFixedSize+len(c.Name))}
	if err := c.appendTo(w); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Decode decodes a contact produced by Encode
func (c *Contact) Decode(buf []byte) error {
	r := &payloadReader{buf: buf}
	if err := c.readFrom(r); err != nil {
		return err
	}
	return r.done()
}

func (c Contact) appendTo(w *payloadWriter) error {
	w.u64(c.ID)
	if err := w.str8(c.Name); err != nil {
		return fmt.Errorf("contact %d: %w", c.ID, err)
	}
	return nil
}

func (c *Contact) readFrom(r *payloadReader) error {
	var err error
	if c.ID, err = r.u64(); err != nil {
		return err
	}
	c.Name, err = r.str8()
	return err
}
