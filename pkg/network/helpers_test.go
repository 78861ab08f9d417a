package network

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/ZentaChain/zentalk-chat/pkg/storage"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory AccountStore. Setting fail makes every call
// return it.
type memStore struct {
	mu       sync.Mutex
	accounts []storage.Account
	messages []storage.StoredMessage
	fail     error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *memStore) LoginExists(ctx context.Context, login string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	for _, a := range m.accounts {
		if a.Login == login {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAccount(ctx context.Context, login string, hash, salt []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	for _, a := range m.accounts {
		if a.Login == login {
			return 0, storage.ErrLoginTaken
		}
	}
	id := uint64(len(m.accounts) + 1)
	m.accounts = append(m.accounts, storage.Account{
		ID:           id,
		Login:        login,
		PasswordHash: append([]byte(nil), hash...),
		PasswordSalt: append([]byte(nil), salt...),
	})
	return id, nil
}

func (m *memStore) AccountByLogin(ctx context.Context, login string) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, a := range m.accounts {
		if a.Login == login {
			acc := a
			return &acc, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) AccountLogin(ctx context.Context, id uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	for _, a := range m.accounts {
		if a.ID == id {
			return a.Login, nil
		}
	}
	return "", storage.ErrNotFound
}

func (m *memStore) SaveMessage(ctx context.Context, sender, receiver uint64, text string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	id := uint64(len(m.messages) + 1)
	m.messages = append(m.messages, storage.StoredMessage{ID: id, Sender: sender, Receiver: receiver, Text: text})
	return id, nil
}

func (m *memStore) MessagesFor(ctx context.Context, accountID uint64) ([]storage.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []storage.StoredMessage
	for _, msg := range m.messages {
		if msg.Sender == accountID || msg.Receiver == accountID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

var testPepper = []byte{0x69, 0xD0, 0x29, 0xBE, 0x4D, 0x8E, 0x0C, 0x42}

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func startTestServer(t *testing.T, cfg ServerConfig, store AccountStore) *Server {
	t.Helper()

	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:0"
	}
	srv, err := NewServer(cfg, store, nil, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

// rawConn speaks the wire protocol directly, without a Client
type rawConn struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.Codec
}

func dialRaw(t *testing.T, srv *Server, key []byte) *rawConn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cipher, err := crypto.NewCipher(key)
	require.NoError(t, err)
	return &rawConn{t: t, conn: conn, codec: protocol.NewCodec(cipher)}
}

func (r *rawConn) send(req protocol.Request) {
	r.t.Helper()
	body, err := protocol.EncodeRequest(req)
	require.NoError(r.t, err)
	require.NoError(r.t, r.codec.WriteFrame(r.conn, body))
}

func (r *rawConn) recvWithin(d time.Duration) (protocol.Reply, error) {
	r.conn.SetReadDeadline(time.Now().Add(d))
	body, err := r.codec.ReadMessage(r.conn)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeReply(body)
}

func (r *rawConn) recv() protocol.Reply {
	r.t.Helper()
	reply, err := r.recvWithin(2 * time.Second)
	require.NoError(r.t, err)
	return reply
}

func (r *rawConn) expectStatus(op protocol.Opcode) {
	r.t.Helper()
	require.Equal(r.t, protocol.StatusReply{Op: op}, r.recv())
}

func prehash(login, password string) [protocol.PasswordHashSize]byte {
	return crypto.PepperHash(password, login, testPepper)
}

func (r *rawConn) register(login, password string) {
	r.t.Helper()
	r.send(protocol.RegisterRequest{Login: login, PasswordHash: prehash(login, password)})
}

func (r *rawConn) login(login, password string) {
	r.t.Helper()
	r.send(protocol.LoginRequest{Login: login, PasswordHash: prehash(login, password)})
}
