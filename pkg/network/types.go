package network

import (
	"context"
	"errors"

	"github.com/ZentaChain/zentalk-chat/pkg/storage"
	"gopkg.in/op/go-logging.v1"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("client closed")
	ErrQueueFull    = errors.New("send queue full")
)

// State is the connection state of a Client
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// AccountStore is the persistence the server needs. *storage.DB implements
// it. Lookups of unknown logins or ids return storage.ErrNotFound;
// CreateAccount returns storage.ErrLoginTaken for a duplicate login.
type AccountStore interface {
	LoginExists(ctx context.Context, login string) (bool, error)
	CreateAccount(ctx context.Context, login string, hash, salt []byte) (uint64, error)
	AccountByLogin(ctx context.Context, login string) (*storage.Account, error)
	AccountLogin(ctx context.Context, id uint64) (string, error)
	SaveMessage(ctx context.Context, sender, receiver uint64, text string) (uint64, error)
	MessagesFor(ctx context.Context, accountID uint64) ([]storage.StoredMessage, error)
}

// LogBackend hands out per-module loggers. *log.Backend implements it.
type LogBackend interface {
	GetLogger(module string) *logging.Logger
}

func getLogger(b LogBackend, module string) *logging.Logger {
	if b == nil {
		return logging.MustGetLogger(module)
	}
	return b.GetLogger(module)
}
