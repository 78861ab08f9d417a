package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrStringTooLong    = errors.New("string too long for length prefix")
)

// payloadWriter appends big-endian fields to a frame body
type payloadWriter struct {
	buf []byte
}

func newPayloadWriter(op Opcode, sizeHint int) *payloadWriter {
	w := &payloadWriter{buf: make([]byte, 0, OpcodeSize+sizeHint)}
	w.u16(uint16(op))
	return w
}

func (w *payloadWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *payloadWriter) u16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *payloadWriter) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *payloadWriter) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *payloadWriter) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// str8 writes a string with a u8 length prefix
func (w *payloadWriter) str8(s string) error {
	if len(s) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrStringTooLong, len(s), MaxNameLength)
	}
	w.u8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// str16 writes a string with a u16 length prefix
func (w *payloadWriter) str16(s string) error {
	if len(s) > MaxTextLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrStringTooLong, len(s), MaxTextLength)
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// payloadReader consumes big-endian fields from a frame body. Every read
// checks the remaining length first.
type payloadReader struct {
	buf    []byte
	offset int
}

func (r *payloadReader) remaining() int {
	return len(r.buf) - r.offset
}

func (r *payloadReader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedPayload, n, r.offset, r.remaining())
	}
	return nil
}

func (r *payloadReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.offset]
	r.offset++
	return v, nil
}

func (r *payloadReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *payloadReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *payloadReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.offset:])
	r.offset += 8
	return v, nil
}

func (r *payloadReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}

func (r *payloadReader) str8() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *payloadReader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// done fails when bytes are left over after a fixed-shape payload
func (r *payloadReader) done() error {
	if r.remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, r.remaining())
	}
	return nil
}
