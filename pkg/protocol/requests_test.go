package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeRequestFromWire(t *testing.T) {
	hash := bytes.Repeat([]byte{0xAA}, PasswordHashSize)
	var hashArr [PasswordHashSize]byte
	copy(hashArr[:], hash)

	concat := func(parts ...[]byte) []byte {
		return bytes.Join(parts, nil)
	}

	tests := []struct {
		name string
		body []byte
		want Request
	}{
		{
			name: "register",
			body: concat([]byte{0x00, 0x00, 5}, []byte("alice"), hash),
			want: RegisterRequest{Login: "alice", PasswordHash: hashArr},
		},
		{
			name: "login",
			body: concat([]byte{0x00, 0x01, 3}, []byte("bob"), hash),
			want: LoginRequest{Login: "bob", PasswordHash: hashArr},
		},
		{
			name: "list",
			body: []byte{0x00, 0x02},
			want: ListRequest{},
		},
		{
			name: "send message",
			body: concat([]byte{0x00, 0x03}, []byte{0, 0, 0, 0, 0, 0, 0, 9}, []byte{0x00, 0x02}, []byte("yo")),
			want: SendMessageRequest{ContactID: 9, Text: "yo"},
		},
		{
			name: "add contact",
			body: concat([]byte{0x00, 0x04, 4}, []byte("carl")),
			want: AddContactRequest{Login: "carl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest(tt.body)
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeRequest() = %#v, want %#v", got, tt.want)
			}

			encoded, err := EncodeRequest(got)
			if err != nil {
				t.Fatalf("EncodeRequest() error = %v", err)
			}
			if !bytes.Equal(encoded, tt.body) {
				t.Errorf("EncodeRequest() = %x, want %x", encoded, tt.body)
			}
		})
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr error
	}{
		{"empty body", nil, ErrShortBody},
		{"half opcode", []byte{0x00}, ErrShortBody},
		{"unknown opcode", []byte{0x00, 0x63}, ErrUnknownOpcode},
		{"negative opcode", []byte{0xFF, 0xFF}, ErrUnknownOpcode},
		{"register without hash", []byte{0x00, 0x00, 3, 'a', 'b', 'c'}, ErrMalformedPayload},
		{"login length beyond body", []byte{0x00, 0x01, 200, 'a'}, ErrMalformedPayload},
		{"list with payload", []byte{0x00, 0x02, 0x01}, ErrMalformedPayload},
		{"send text shorter than declared", []byte{0x00, 0x03, 0, 0, 0, 0, 0, 0, 0, 1, 0x00, 0x05, 'h', 'i'}, ErrMalformedPayload},
		{"send missing contact id", []byte{0x00, 0x03, 0, 1}, ErrMalformedPayload},
		{"add contact trailing bytes", []byte{0x00, 0x04, 1, 'a', 'z'}, ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeReply(t *testing.T) {
	list := ContactListReply{
		Contacts: []Contact{{ID: 2, Name: "bob"}, {ID: 3, Name: UnnamedContact}},
		Messages: []ChatMessage{
			{ID: 10, ContactID: 2, SentByMe: true, Text: "hi bob"},
			{ID: 11, ContactID: 2, Text: "hi alice"},
			{ID: 12, ContactID: 3, Text: ""},
		},
	}

	tests := []struct {
		name  string
		reply Reply
	}{
		{"register ok", StatusReply{Op: OpRegisterOK}},
		{"login ok", StatusReply{Op: OpLoginOK}},
		{"bad credentials", StatusReply{Op: OpBadCredentials}},
		{"not found", StatusReply{Op: OpContactNotFound}},
		{"contact found", ContactFoundReply{ID: 77}},
		{"warning", WarningReply{Title: "Server", Message: "shutting down"}},
		{"contact list", list},
		{"empty contact list", ContactListReply{Contacts: []Contact{}, Messages: []ChatMessage{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := EncodeReply(tt.reply)
			if err != nil {
				t.Fatalf("EncodeReply() error = %v", err)
			}

			op, _, err := SplitOpcode(body)
			if err != nil {
				t.Fatalf("SplitOpcode() error = %v", err)
			}
			if op != tt.reply.Opcode() {
				t.Errorf("opcode = %d, want %d", op, tt.reply.Opcode())
			}

			decoded, err := DecodeReply(body)
			if err != nil {
				t.Fatalf("DecodeReply() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.reply) {
				t.Errorf("DecodeReply() = %#v, want %#v", decoded, tt.reply)
			}
		})
	}
}

func TestContactListWireLayout(t *testing.T) {
	body, err := EncodeReply(ContactListReply{
		Contacts: []Contact{{ID: 1, Name: "a"}},
		Messages: []ChatMessage{},
	})
	if err != nil {
		t.Fatalf("EncodeReply() error = %v", err)
	}

	want := []byte{
		0x00, 0x07,
		0, 0, 0, 1,
		0, 0, 0, 0, 0, 0, 0, 1, 1, 'a',
		0, 0, 0, 0,
	}
	if !bytes.Equal(body, want) {
		t.Errorf("EncodeReply() = %x, want %x", body, want)
	}
}

func TestDecodeReplyErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr error
	}{
		{"unknown opcode", []byte{0x00, 0x0A}, ErrUnknownOpcode},
		{"status with payload", []byte{0x00, 0x06, 0x01}, ErrMalformedPayload},
		{"found without id", []byte{0x00, 0x08, 0, 0, 0}, ErrMalformedPayload},
		{"list count beyond body", []byte{0x00, 0x07, 0xFF, 0xFF, 0xFF, 0xFF}, ErrMalformedPayload},
		{"list missing message count", []byte{0x00, 0x07, 0, 0, 0, 0}, ErrMalformedPayload},
		{"warning truncated", []byte{0x00, 0x04, 5, 'T'}, ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReply(tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeReply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeReplyRejectsNonStatus(t *testing.T) {
	_, err := EncodeReply(StatusReply{Op: OpContactList})
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("EncodeReply() error = %v, want ErrUnknownOpcode", err)
	}
}
