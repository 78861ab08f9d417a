package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/history"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"gopkg.in/op/go-logging.v1"
)

// ClientConfig configures a Client
type ClientConfig struct {
	// Address is host:port or a multiaddr
	Address string

	// Key is the pre-shared AES-256 key
	Key []byte

	// Pepper is mixed into the client password hash
	Pepper []byte

	DialTimeout time.Duration

	// InitialAttempts bounds the connect started by Start
	InitialAttempts int

	// ReconnectAttempts bounds the reconnect after a drop; zero retries
	// until Dispose
	ReconnectAttempts int

	BackoffMin time.Duration
	BackoffMax time.Duration

	SendQueueSize int

	// JoinTimeout bounds each wait in Dispose
	JoinTimeout time.Duration

	MaxFrameSize int
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.InitialAttempts <= 0 {
		cfg.InitialAttempts = 3
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 5 * time.Second
		if cfg.BackoffMax < cfg.BackoffMin {
			cfg.BackoffMax = cfg.BackoffMin
		}
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 256
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 2 * time.Second
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
}

// DialFunc opens a connection to the server
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client is the user side of a chat connection
type Client struct {
	cfg     ClientConfig
	log     *logging.Logger
	codec   *protocol.Codec
	network string
	address string
	dial    DialFunc

	ctx    context.Context
	cancel context.CancelFunc

	state        atomic.Int32
	closing      atomic.Bool
	reconnecting atomic.Bool

	// mu guards the live pump set and the running supervisor
	mu    sync.Mutex
	pumps *pumpSet
	super *supervisor

	writeMu sync.Mutex
	sendQ   chan []byte
	errCh   chan error
	stop    chan struct{}

	// bg tracks connect and reconnect supervisors
	bg sync.WaitGroup

	dispatcher *Dispatcher
	observer   atomic.Pointer[observerRef]

	timeline *protocol.Timeline
	history  *history.Store
	owner    atomic.Pointer[string]

	// authMu guards logins sent and not yet answered, oldest first
	authMu      sync.Mutex
	authPending []string

	startOnce   sync.Once
	disposeOnce sync.Once
}

type observerRef struct {
	o SessionObserver
}

// NewClient creates a client. Nothing is dialed until Start.
func NewClient(cfg ClientConfig, backend LogBackend) (*Client, error) {
	cfg.applyDefaults()

	cipher, err := crypto.NewCipher(cfg.Key)
	if err != nil {
		return nil, err
	}

	network, address, err := ParseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	log := getLogger(backend, "client")
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:        cfg,
		log:        log,
		codec:      &protocol.Codec{Cipher: cipher, MaxFrameSize: cfg.MaxFrameSize},
		network:    network,
		address:    address,
		ctx:        ctx,
		cancel:     cancel,
		sendQ:      make(chan []byte, cfg.SendQueueSize),
		errCh:      make(chan error, 16),
		stop:       make(chan struct{}),
		dispatcher: NewDispatcher(256, log),
		timeline:   protocol.NewTimeline(),
	}

	dialer := &net.Dialer{}
	c.dial = dialer.DialContext
	return c, nil
}

// SetDialer replaces the function used to open connections. Must be called
// before Start.
func (c *Client) SetDialer(dial DialFunc) {
	c.dial = dial
}

// SetObserver attaches the observer; nil detaches it. Without an observer
// events are dropped.
func (c *Client) SetObserver(o SessionObserver) {
	if o == nil {
		c.observer.Store(nil)
		return
	}
	c.observer.Store(&observerRef{o: o})
}

// AttachHistory caches list replies and sent messages in h
func (c *Client) AttachHistory(h *history.Store) {
	c.history = h
}

// Start connects in the background with up to InitialAttempts attempts
func (c *Client) Start() {
	c.startOnce.Do(func() {
		if c.closing.Load() {
			return
		}
		c.state.Store(int32(StateConnecting))

		c.bg.Add(1)
		go func() {
			defer c.bg.Done()

			if c.connectLoop(c.cfg.InitialAttempts) || c.closing.Load() {
				return
			}
			c.state.Store(int32(StateDisconnected))
			c.notifyWarning("Connection failed",
				fmt.Sprintf("Could not reach %s after %d attempts", c.cfg.Address, c.cfg.InitialAttempts))
		}()
	})
}

// State returns the connection state
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether a live connection is installed
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Errors returns send failures. Errors are dropped when nobody reads.
func (c *Client) Errors() <-chan error {
	return c.errCh
}

// Timeline returns the messages known to the client
func (c *Client) Timeline() *protocol.Timeline {
	return c.timeline
}

// SendAsync queues a frame body for the send pump. It never blocks; when
// the queue is full the body is dropped.
func (c *Client) SendAsync(body []byte) error {
	if c.closing.Load() {
		return ErrClosed
	}

	select {
	case c.sendQ <- body:
		return nil
	default:
		c.log.Warningf("Send queue full, dropping %d byte frame", len(body))
		return ErrQueueFull
	}
}

// SendBlocking writes a frame body on the calling goroutine, bypassing the
// queue. Failures are published on Errors and to the observer.
func (c *Client) SendBlocking(body []byte) {
	if c.closing.Load() {
		c.report(ErrClosed)
		return
	}

	c.mu.Lock()
	p := c.pumps
	c.mu.Unlock()

	if p == nil || !c.IsConnected() {
		c.report(ErrNotConnected)
		return
	}

	if err := c.writeFrame(p.conn, body); err != nil {
		c.report(err)
	}
}

func (c *Client) writeFrame(conn net.Conn, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.WriteFrame(conn, body)
}

func (c *Client) report(err error) {
	c.log.Warningf("Send failed: %v", err)

	select {
	case c.errCh <- err:
	default:
	}
	c.notifyWarning("Send failed", err.Error())
}

// Dispose stops the client and waits, bounded by JoinTimeout per step, for
// the pumps, supervisors and dispatcher. It is idempotent.
func (c *Client) Dispose() {
	c.disposeOnce.Do(func() {
		c.closing.Store(true)
		c.state.Store(int32(StateClosing))
		c.cancel()
		close(c.stop)

		c.mu.Lock()
		p := c.pumps
		c.mu.Unlock()

		if p != nil {
			p.shutdown()
			if !p.wait(c.cfg.JoinTimeout) {
				c.log.Warning("Pumps did not stop in time")
			}
		}

		if !waitTimeout(&c.bg, c.cfg.JoinTimeout) {
			c.log.Warning("Reconnect supervisor did not stop in time")
		}

		if !c.dispatcher.Close(c.cfg.JoinTimeout) {
			c.log.Warning("Dispatcher did not stop in time")
		}

		c.state.Store(int32(StateDisconnected))
		c.log.Info("Client disposed")
	})
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ===== OBSERVER DISPATCH =====

func (c *Client) post(fn func(o SessionObserver)) {
	ref := c.observer.Load()
	if ref == nil {
		return
	}
	c.dispatcher.Post(func() { fn(ref.o) })
}

func (c *Client) notifyWarning(title, description string) {
	c.post(func(o SessionObserver) { o.OnWarning(title, description) })
}

func (c *Client) notifyDisconnect() {
	c.post(func(o SessionObserver) { o.OnDisconnect() })
}

func (c *Client) notifyReconnect() {
	c.post(func(o SessionObserver) { o.OnReconnect() })
}

// deliver updates local state for a reply and hands it to the observer
func (c *Client) deliver(reply protocol.Reply, raw []byte) {
	switch r := reply.(type) {
	case protocol.StatusReply:
		c.finishAuth(r.Op)
	case protocol.ContactListReply:
		c.timeline.DropPending()
		c.timeline.Merge(r.Messages)
		if owner := c.Owner(); c.history != nil && owner != "" {
			if err := c.history.SaveList(owner, r); err != nil {
				c.log.Warningf("Failed to cache list: %v", err)
			}
		}
	case protocol.WarningReply:
		c.notifyWarning(r.Title, r.Message)
		return
	}

	c.post(func(o SessionObserver) { o.OnMessage(reply.Opcode(), reply, raw) })
}

// beginAuth records a register or login sent on the current connection
func (c *Client) beginAuth(login string) {
	c.authMu.Lock()
	c.authPending = append(c.authPending, login)
	c.authMu.Unlock()
}

// cancelAuth forgets the newest attempt for login after a failed send
func (c *Client) cancelAuth(login string) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	for i := len(c.authPending) - 1; i >= 0; i-- {
		if c.authPending[i] == login {
			c.authPending = append(c.authPending[:i], c.authPending[i+1:]...)
			return
		}
	}
}

// resetAuth drops unanswered attempts. Replies to them are lost with the
// connection.
func (c *Client) resetAuth() {
	c.authMu.Lock()
	c.authPending = nil
	c.authMu.Unlock()
}

// finishAuth matches an auth status reply to the oldest attempt. The owner
// only moves on success. Opcode 1 can answer any request, so it clears the
// attempts; a later success with none recorded clears the owner rather
// than guess.
func (c *Client) finishAuth(op protocol.Opcode) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	switch op {
	case protocol.OpRegisterOK, protocol.OpLoginOK:
		if len(c.authPending) == 0 {
			c.owner.Store(nil)
			return
		}
		login := c.authPending[0]
		c.authPending = c.authPending[1:]
		c.owner.Store(&login)
	case protocol.OpLoginTaken, protocol.OpBadLoginLength, protocol.OpBadCredentials:
		if len(c.authPending) > 0 {
			c.authPending = c.authPending[1:]
		}
	case protocol.OpUnknownError:
		c.authPending = nil
	}
}

// Owner returns the login the server last accepted on this client, empty
// before that
func (c *Client) Owner() string {
	if p := c.owner.Load(); p != nil {
		return *p
	}
	return ""
}

// ===== REQUESTS =====

func (c *Client) sendRequest(req protocol.Request) error {
	body, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	return c.SendAsync(body)
}

func (c *Client) credentials(login, password string) (string, [protocol.PasswordHashSize]byte) {
	login = protocol.NormalizeLogin(login)
	return login, crypto.PepperHash(password, login, c.cfg.Pepper)
}

// Register asks the server to create an account. The reply arrives as
// opcode 0, 1, 2 or 3.
func (c *Client) Register(login, password string) error {
	login, hash := c.credentials(login, password)
	return c.sendAuth(login, protocol.RegisterRequest{Login: login, PasswordHash: hash})
}

// Login authenticates the connection. The reply arrives as opcode 1, 3, 5
// or 6.
func (c *Client) Login(login, password string) error {
	login, hash := c.credentials(login, password)
	return c.sendAuth(login, protocol.LoginRequest{Login: login, PasswordHash: hash})
}

// sendAuth sends a register or login. History is kept under login once the
// server accepts it.
func (c *Client) sendAuth(login string, req protocol.Request) error {
	c.beginAuth(login)
	if err := c.sendRequest(req); err != nil {
		c.cancelAuth(login)
		return err
	}
	return nil
}

// RequestList asks for all contacts and messages
func (c *Client) RequestList() error {
	return c.sendRequest(protocol.ListRequest{})
}

// SendText sends a message and returns the local copy, which has ID 0
// until a list reply brings the stored one
func (c *Client) SendText(contactID uint64, text string) (protocol.ChatMessage, error) {
	msg := protocol.ChatMessage{ContactID: contactID, SentByMe: true, Text: text}

	if err := c.sendRequest(protocol.SendMessageRequest{ContactID: contactID, Text: text}); err != nil {
		return msg, err
	}

	c.timeline.Insert(msg)
	if owner := c.Owner(); c.history != nil && owner != "" {
		if err := c.history.AddPending(owner, msg); err != nil {
			c.log.Warningf("Failed to cache message: %v", err)
		}
	}
	return msg, nil
}

// AddContact resolves a login. The reply arrives as opcode 8 or 9.
func (c *Client) AddContact(login string) error {
	return c.sendRequest(protocol.AddContactRequest{Login: protocol.NormalizeLogin(login)})
}

var errDisposed = errors.New("disposed during connect")
