// Package api provides the admin HTTP API of the chat server
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/log"
	"github.com/ZentaChain/zentalk-chat/pkg/metrics"
	"github.com/ZentaChain/zentalk-chat/pkg/network"
	"github.com/ZentaChain/zentalk-chat/pkg/storage"
	"github.com/gin-gonic/gin"
	"gopkg.in/op/go-logging.v1"
)

// SessionSource exposes the live chat server. *network.Server implements it.
type SessionSource interface {
	Stats() network.ServerStats
	Sessions() []network.SessionInfo
}

// StoreSource exposes row counts. *storage.DB implements it.
type StoreSource interface {
	Stats() (storage.Stats, error)
}

// Server represents the admin HTTP API server
type Server struct {
	cfg        *Config
	sessions   SessionSource
	store      StoreSource
	metrics    *metrics.Metrics
	router     *gin.Engine
	limiter    *RateLimiter
	log        *logging.Logger
	listener   net.Listener
	httpServer *http.Server
	startedAt  time.Time
}

// Config holds server configuration
type Config struct {
	// Listen is host:port or a multiaddr
	Listen       string
	EnableCORS   bool
	RateLimit    int // Requests per minute
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:9452",
		EnableCORS:   false,
		RateLimit:    120,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// NewServer creates the API server. m may be nil, in which case /metrics
// is not served. backend may be nil.
func NewServer(cfg *Config, sessions SessionSource, store StoreSource, m *metrics.Metrics, backend *log.Backend) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		sessions:  sessions,
		store:     store,
		metrics:   m,
		router:    gin.New(),
		limiter:   NewRateLimiter(cfg.RateLimit),
		startedAt: time.Now(),
	}

	var recoveryOut io.Writer = gin.DefaultErrorWriter
	if backend != nil {
		s.log = backend.GetLogger("api")
		recoveryOut = backend.GetLogWriter("api", "ERROR")
	} else {
		s.log = logging.MustGetLogger("api")
	}

	s.setupMiddleware(recoveryOut)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(recoveryOut io.Writer) {
	if s.cfg.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	s.router.Use(RateLimitMiddleware(s.limiter))
	s.router.Use(LoggingMiddleware(s.log))
	s.router.Use(gin.RecoveryWithWriter(recoveryOut))
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/stats", s.handleStats)
		v1.GET("/sessions", s.handleSessions)
	}

	s.router.GET("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on cfg.Listen and serves in the background
func (s *Server) Start() error {
	netw, address, err := network.ParseAddress(s.cfg.Listen)
	if err != nil {
		return err
	}

	listener, err := net.Listen(netw, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.log.Noticef("Admin API listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Admin API error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	s.limiter.Stop()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
