package network

import (
	"context"
	"errors"
	"sort"

	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/metrics"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/ZentaChain/zentalk-chat/pkg/storage"
)

func (sess *Session) handle(ctx context.Context, req protocol.Request) {
	switch r := req.(type) {
	case protocol.RegisterRequest:
		sess.handleRegister(ctx, r)
		return
	case protocol.LoginRequest:
		sess.handleLogin(ctx, r)
		return
	}

	if sess.AccountID() == 0 {
		sess.server.slog.Debugf("[%s] Ignoring opcode %d before login", sess.tag, req.Opcode())
		sess.server.metrics.FrameDropped(metrics.DropUnauth)
		return
	}

	switch r := req.(type) {
	case protocol.ListRequest:
		sess.handleList(ctx)
	case protocol.SendMessageRequest:
		sess.handleSendMessage(ctx, r)
	case protocol.AddContactRequest:
		sess.handleAddContact(ctx, r)
	}
}

func (sess *Session) handleRegister(ctx context.Context, r protocol.RegisterRequest) {
	log := sess.server.slog
	m := sess.server.metrics
	store := sess.server.store

	login := protocol.NormalizeLogin(r.Login)
	if !protocol.ValidLogin(login) {
		m.AuthAttempt("register", "bad_login")
		sess.replyStatus(protocol.OpBadLoginLength)
		return
	}

	exists, err := store.LoginExists(ctx, login)
	if err != nil {
		log.Warningf("[%s] Register: %v", sess.tag, err)
		m.AuthAttempt("register", "error")
		sess.replyStatus(protocol.OpUnknownError)
		return
	}
	if exists {
		m.AuthAttempt("register", "taken")
		sess.replyStatus(protocol.OpLoginTaken)
		return
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		log.Errorf("[%s] Register: failed to generate salt: %v", sess.tag, err)
		m.AuthAttempt("register", "error")
		sess.replyStatus(protocol.OpUnknownError)
		return
	}
	hash := crypto.SaltHash(r.PasswordHash[:], salt)

	id, err := store.CreateAccount(ctx, login, hash[:], salt)
	switch {
	case errors.Is(err, storage.ErrLoginTaken):
		m.AuthAttempt("register", "taken")
		sess.replyStatus(protocol.OpLoginTaken)
		return
	case err != nil:
		log.Warningf("[%s] Register: %v", sess.tag, err)
		m.AuthAttempt("register", "error")
		sess.replyStatus(protocol.OpUnknownError)
		return
	}

	m.AuthAttempt("register", "ok")
	sess.authenticate(id, login)
	sess.replyStatus(protocol.OpRegisterOK)
}

func (sess *Session) handleLogin(ctx context.Context, r protocol.LoginRequest) {
	log := sess.server.slog
	m := sess.server.metrics

	login := protocol.NormalizeLogin(r.Login)
	if !protocol.ValidLogin(login) {
		m.AuthAttempt("login", "bad_login")
		sess.replyStatus(protocol.OpBadLoginLength)
		return
	}

	acc, err := sess.server.store.AccountByLogin(ctx, login)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.AuthAttempt("login", "bad_credentials")
		sess.replyStatus(protocol.OpBadCredentials)
		return
	case err != nil:
		log.Warningf("[%s] Login: %v", sess.tag, err)
		m.AuthAttempt("login", "error")
		sess.replyStatus(protocol.OpUnknownError)
		return
	}

	if !crypto.VerifyPassword(r.PasswordHash[:], acc.PasswordSalt, acc.PasswordHash) {
		m.AuthAttempt("login", "bad_credentials")
		sess.replyStatus(protocol.OpBadCredentials)
		return
	}

	m.AuthAttempt("login", "ok")
	sess.authenticate(acc.ID, acc.Login)
	sess.replyStatus(protocol.OpLoginOK)
}

func (sess *Session) handleList(ctx context.Context) {
	me := sess.AccountID()
	store := sess.server.store

	rows, err := store.MessagesFor(ctx, me)
	if err != nil {
		sess.server.slog.Warningf("[%s] List: %v", sess.tag, err)
		sess.replyStatus(protocol.OpUnknownError)
		return
	}

	reply := protocol.ContactListReply{
		Contacts: []protocol.Contact{},
		Messages: make([]protocol.ChatMessage, 0, len(rows)),
	}

	seen := make(map[uint64]bool)
	for _, row := range rows {
		other := row.Counterpart(me)
		reply.Messages = append(reply.Messages, protocol.ChatMessage{
			ID:        row.ID,
			ContactID: other,
			SentByMe:  row.Sender == me,
			Text:      row.Text,
		})

		if seen[other] {
			continue
		}
		seen[other] = true

		name, err := store.AccountLogin(ctx, other)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				sess.server.slog.Warningf("[%s] List: resolving account %d: %v", sess.tag, other, err)
			}
			name = protocol.UnnamedContact
		}
		reply.Contacts = append(reply.Contacts, protocol.Contact{ID: other, Name: name})
	}

	sort.Slice(reply.Contacts, func(i, j int) bool { return reply.Contacts[i].ID < reply.Contacts[j].ID })
	sort.Slice(reply.Messages, func(i, j int) bool { return reply.Messages[i].ID < reply.Messages[j].ID })

	sess.reply(reply)
}

func (sess *Session) handleSendMessage(ctx context.Context, r protocol.SendMessageRequest) {
	if _, err := sess.server.store.SaveMessage(ctx, sess.AccountID(), r.ContactID, r.Text); err != nil {
		sess.server.slog.Warningf("[%s] Failed to store message for %d: %v", sess.tag, r.ContactID, err)
		sess.pushWarning("Message not sent", "The server could not store your message")
		return
	}
	sess.server.metrics.MessageStored()
}

func (sess *Session) handleAddContact(ctx context.Context, r protocol.AddContactRequest) {
	acc, err := sess.server.store.AccountByLogin(ctx, protocol.NormalizeLogin(r.Login))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		sess.replyStatus(protocol.OpContactNotFound)
	case err != nil:
		sess.server.slog.Warningf("[%s] Add contact: %v", sess.tag, err)
		sess.replyStatus(protocol.OpUnknownError)
	default:
		sess.reply(protocol.ContactFoundReply{ID: acc.ID})
	}
}
