package history

import (
	"path/filepath"
	"testing"

	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestSaveAndLoad(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	list := protocol.ContactListReply{
		Contacts: []protocol.Contact{{ID: 9, Name: "carol"}, {ID: 2, Name: "bob"}},
		Messages: []protocol.ChatMessage{
			{ID: 30, ContactID: 9, Text: "late"},
			{ID: 10, ContactID: 2, SentByMe: true, Text: "hi bob"},
			{ID: 20, ContactID: 2, Text: ""},
		},
	}
	require.NoError(t, s.SaveList("alice", list))

	snap, err := s.Load("alice")
	require.NoError(t, err)

	assert.Equal(t, []protocol.Contact{{ID: 2, Name: "bob"}, {ID: 9, Name: "carol"}}, snap.Contacts)
	assert.Equal(t, []protocol.ChatMessage{
		{ID: 10, ContactID: 2, SentByMe: true, Text: "hi bob"},
		{ID: 20, ContactID: 2, Text: ""},
		{ID: 30, ContactID: 9, Text: "late"},
	}, snap.Messages)
}

func TestOwnersAreSeparate(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	require.NoError(t, s.AddContact("alice", protocol.Contact{ID: 2, Name: "bob"}))

	snap, err := s.Load("bob")
	require.NoError(t, err)
	assert.Empty(t, snap.Contacts)
	assert.Empty(t, snap.Messages)
}

func TestPendingClearedByList(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	require.NoError(t, s.AddPending("alice", protocol.ChatMessage{ContactID: 2, SentByMe: true, Text: "first"}))
	require.NoError(t, s.AddPending("alice", protocol.ChatMessage{ContactID: 2, SentByMe: true, Text: "second"}))

	tl, err := s.Timeline("alice")
	require.NoError(t, err)
	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Zero(t, msgs[0].ID)

	require.NoError(t, s.SaveList("alice", protocol.ContactListReply{
		Messages: []protocol.ChatMessage{{ID: 5, ContactID: 2, SentByMe: true, Text: "first"}},
	}))

	snap, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, []protocol.ChatMessage{{ID: 5, ContactID: 2, SentByMe: true, Text: "first"}}, snap.Messages)
}

func TestPersistsAcrossOpen(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.AddContact("alice", protocol.Contact{ID: 4, Name: "dave"}))
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Contact{{ID: 4, Name: "dave"}}, snap.Contacts)
}

func TestEmptyOwner(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	assert.ErrorIs(t, s.AddContact("", protocol.Contact{ID: 1}), ErrEmptyOwner)
	_, err := s.Load("")
	assert.ErrorIs(t, err, ErrEmptyOwner)
}
