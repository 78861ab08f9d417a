package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthPrefixSize is the size of the big-endian frame length
	LengthPrefixSize = 4

	// DefaultMaxFrameSize caps the declared length of an incoming frame
	DefaultMaxFrameSize = 16 << 20
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrShortRead        = errors.New("short read")
	ErrEmptyFrame       = errors.New("empty frame")
	ErrFrameTooLarge    = errors.New("frame too large")
)

// FrameError reports which step of frame processing failed
type FrameError struct {
	Op  string
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s: %v", e.Op, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Sealer encrypts and decrypts frame bodies. *crypto.Cipher implements it.
type Sealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type flusher interface {
	Flush() error
}

// Codec turns frame bodies into encrypted, length-prefixed frames and back
type Codec struct {
	Cipher Sealer

	// MaxFrameSize caps incoming frames; zero means DefaultMaxFrameSize
	MaxFrameSize int
}

// NewCodec creates a codec with the default frame size cap
func NewCodec(cipher Sealer) *Codec {
	return &Codec{Cipher: cipher, MaxFrameSize: DefaultMaxFrameSize}
}

// Encode encrypts a body and prepends the length prefix
func (c *Codec) Encode(plaintext []byte) ([]byte, error) {
	ciphertext, err := c.Cipher.Encrypt(plaintext)
	if err != nil {
		return nil, &FrameError{Op: "encrypt", Err: err}
	}
	return AppendFrame(make([]byte, 0, LengthPrefixSize+len(ciphertext)), ciphertext), nil
}

// WriteFrame encrypts a body and writes the frame with a single Write,
// flushing w if it buffers
func (c *Codec) WriteFrame(w io.Writer, plaintext []byte) error {
	frame, err := c.Encode(plaintext)
	if err != nil {
		return err
	}

	if _, err := w.Write(frame); err != nil {
		return &FrameError{Op: "write", Err: err}
	}

	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return &FrameError{Op: "flush", Err: err}
		}
	}
	return nil
}

// ReadFrame reads one frame and returns its ciphertext
func (c *Codec) ReadFrame(r io.Reader) ([]byte, error) {
	limit := c.MaxFrameSize
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}
	return ReadFrame(r, limit)
}

// Open decrypts the ciphertext of a frame
func (c *Codec) Open(ciphertext []byte) ([]byte, error) {
	plaintext, err := c.Cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, &FrameError{Op: "decrypt", Err: err}
	}
	return plaintext, nil
}

// ReadMessage reads one frame and decrypts it
func (c *Codec) ReadMessage(r io.Reader) ([]byte, error) {
	ciphertext, err := c.ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return c.Open(ciphertext)
}

// AppendFrame appends the length prefix and ciphertext to dst
func AppendFrame(dst, ciphertext []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(ciphertext)))
	return append(dst, ciphertext...)
}

// ReadFrame blocks until a length prefix and that many ciphertext bytes have
// been read. A declared length below one is reported as ErrEmptyFrame
// without reading further.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FrameError{Op: "read length", Err: ErrConnectionClosed}
		}
		return nil, &FrameError{Op: "read length", Err: err}
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length < 1 {
		return nil, &FrameError{Op: "read length", Err: ErrEmptyFrame}
	}
	if uint64(length) > uint64(maxSize) {
		return nil, &FrameError{Op: "read length", Err: fmt.Errorf("%w: %d bytes, max %d", ErrFrameTooLarge, length, maxSize)}
	}

	body := make([]byte, length)
	n, err := io.ReadFull(r, body)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, &FrameError{Op: "read body", Err: ErrConnectionClosed}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &FrameError{Op: "read body", Err: fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, length)}
		default:
			return nil, &FrameError{Op: "read body", Err: err}
		}
	}

	return body, nil
}
