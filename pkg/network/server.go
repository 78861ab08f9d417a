package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/metrics"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gopkg.in/op/go-logging.v1"
)

var ErrServerStopped = errors.New("server stopped")

// ServerConfig configures a Server
type ServerConfig struct {
	// Address is host:port or a multiaddr to listen on
	Address string

	// Key is the pre-shared AES-256 key
	Key []byte

	// MaxPendingConnections bounds how many connections are accepted in a
	// burst. The budget refills at the same number per second; further
	// connections wait in the listen backlog.
	MaxPendingConnections int

	// AuthTimeout closes connections that have not registered or logged in
	// within this time
	AuthTimeout time.Duration

	MaxFrameSize int

	// WriteTimeout bounds each reply write
	WriteTimeout time.Duration

	// ShutdownTimeout bounds how long Stop waits for sessions
	ShutdownTimeout time.Duration
}

func (cfg *ServerConfig) applyDefaults() {
	if cfg.MaxPendingConnections <= 0 {
		cfg.MaxPendingConnections = 8
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = time.Minute
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}

// ServerStats is a snapshot for the admin API
type ServerStats struct {
	Address               string        `json:"address"`
	StartedAt             time.Time     `json:"started_at"`
	Uptime                time.Duration `json:"uptime_ns"`
	ActiveSessions        int           `json:"active_sessions"`
	AuthenticatedSessions int           `json:"authenticated_sessions"`
	TotalSessions         uint64        `json:"total_sessions"`
}

// Server accepts client connections and runs a Session for each
type Server struct {
	cfg     ServerConfig
	store   AccountStore
	codec   *protocol.Codec
	log     *logging.Logger
	slog    *logging.Logger
	metrics *metrics.Metrics

	listener    net.Listener
	acceptLimit *rate.Limiter

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedAt time.Time
	total     atomic.Uint64
	closing   atomic.Bool
	stopOnce  sync.Once
}

// NewServer creates a server. m may be nil.
func NewServer(cfg ServerConfig, store AccountStore, backend LogBackend, m *metrics.Metrics) (*Server, error) {
	cfg.applyDefaults()

	cipher, err := crypto.NewCipher(cfg.Key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		store:       store,
		codec:       &protocol.Codec{Cipher: cipher, MaxFrameSize: cfg.MaxFrameSize},
		log:         getLogger(backend, "server"),
		slog:        getLogger(backend, "session"),
		metrics:     m,
		acceptLimit: rate.NewLimiter(rate.Limit(cfg.MaxPendingConnections), cfg.MaxPendingConnections),
		sessions:    make(map[uuid.UUID]*Session),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start listens and accepts connections in the background
func (s *Server) Start() error {
	if s.closing.Load() {
		return ErrServerStopped
	}

	network, address, err := ParseAddress(s.cfg.Address)
	if err != nil {
		return err
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}

	s.listener = listener
	s.startedAt = time.Now()
	s.log.Noticef("Listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var delay time.Duration
	for {
		if err := s.acceptLimit.Wait(s.ctx); err != nil {
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}

			// Keep accepting after EMFILE, ECONNABORTED and the like
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.log.Warningf("Accept error: %v; retrying in %v", err, delay)

			select {
			case <-time.After(delay):
				continue
			case <-s.ctx.Done():
				return
			}
		}
		delay = 0

		sess := newSession(s, conn)
		if !s.register(sess) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.run(s.ctx)
			s.unregister(sess)
		}()
	}
}

func (s *Server) register(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return false
	}
	s.sessions[sess.id] = sess
	s.total.Add(1)
	s.metrics.SessionOpened()
	return true
}

func (s *Server) unregister(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	s.metrics.SessionClosed()
}

// Stop closes the listener, warns authenticated sessions, closes every
// session and waits for them up to ShutdownTimeout
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closing.Store(true)
		sessions := make([]*Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		s.cancel()

		s.warnShutdown(sessions)
		for _, sess := range sessions {
			sess.close()
		}

		if !waitTimeout(&s.wg, s.cfg.ShutdownTimeout) {
			s.log.Warning("Sessions did not stop in time")
		}
		s.log.Notice("Server stopped")
	})
}

// warnShutdown pushes the shutdown warning to authenticated sessions in
// parallel. Each push gets at most a second.
func (s *Server) warnShutdown(sessions []*Session) {
	timeout := time.Second
	if s.cfg.ShutdownTimeout < timeout {
		timeout = s.cfg.ShutdownTimeout
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		if sess.AccountID() == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.writeReply(protocol.WarningReply{Title: "Server", Message: "The server is shutting down"}, timeout)
		}()
	}

	if !waitTimeout(&wg, timeout) {
		s.log.Warning("Shutdown warning not delivered to every session")
	}
}

// Sessions returns the live sessions ordered by connect time
func (s *Server) Sessions() []SessionInfo {
	s.mu.RLock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Info())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Stats returns a snapshot of server counters
func (s *Server) Stats() ServerStats {
	st := ServerStats{
		StartedAt:     s.startedAt,
		TotalSessions: s.total.Load(),
	}
	if addr := s.Addr(); addr != nil {
		st.Address = addr.String()
	}
	if !s.startedAt.IsZero() {
		st.Uptime = time.Since(s.startedAt)
	}

	s.mu.RLock()
	st.ActiveSessions = len(s.sessions)
	for _, sess := range s.sessions {
		if sess.AccountID() != 0 {
			st.AuthenticatedSessions++
		}
	}
	s.mu.RUnlock()

	return st
}
