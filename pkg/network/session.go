package network

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/metrics"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/google/uuid"
)

// SessionInfo describes a live session
type SessionInfo struct {
	ID          string    `json:"id"`
	Remote      string    `json:"remote"`
	AccountID   uint64    `json:"account_id"`
	Login       string    `json:"login,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Session serves one client connection. Replies are written synchronously
// by the goroutine that handles the request.
type Session struct {
	id     uuid.UUID
	server *Server
	conn   net.Conn
	tag    string

	connectedAt time.Time

	accountID atomic.Uint64
	login     atomic.Pointer[string]

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(s *Server, conn net.Conn) *Session {
	id := uuid.New()
	return &Session{
		id:          id,
		server:      s,
		conn:        conn,
		tag:         id.String()[:8],
		connectedAt: time.Now(),
	}
}

// AccountID returns the authenticated account, zero before login
func (sess *Session) AccountID() uint64 {
	return sess.accountID.Load()
}

// Info returns a description of the session
func (sess *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:          sess.id.String(),
		Remote:      sess.conn.RemoteAddr().String(),
		AccountID:   sess.AccountID(),
		ConnectedAt: sess.connectedAt,
	}
	if l := sess.login.Load(); l != nil {
		info.Login = *l
	}
	return info
}

func (sess *Session) run(ctx context.Context) {
	defer sess.close()

	log := sess.server.slog
	codec := sess.server.codec
	m := sess.server.metrics

	log.Debugf("[%s] New connection from %s", sess.tag, sess.conn.RemoteAddr())
	sess.conn.SetReadDeadline(time.Now().Add(sess.server.cfg.AuthTimeout))

	for {
		ciphertext, err := codec.ReadFrame(sess.conn)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrEmptyFrame):
				m.FrameDropped(metrics.DropEmpty)
				continue
			case errors.Is(err, protocol.ErrShortRead):
				log.Warningf("[%s] %v", sess.tag, err)
				m.FrameDropped(metrics.DropShort)
				continue
			case errors.Is(err, protocol.ErrConnectionClosed):
				log.Debugf("[%s] Connection closed by peer", sess.tag)
			case errors.Is(err, os.ErrDeadlineExceeded) && sess.AccountID() == 0:
				log.Infof("[%s] No login within %v, closing", sess.tag, sess.server.cfg.AuthTimeout)
			default:
				if ctx.Err() == nil {
					log.Infof("[%s] Read error: %v", sess.tag, err)
				}
			}
			return
		}

		body, err := codec.Open(ciphertext)
		if err != nil {
			log.Warningf("[%s] Dropping frame: %v", sess.tag, err)
			m.FrameDropped(metrics.DropDecrypt)
			continue
		}

		req, err := protocol.DecodeRequest(body)
		if err != nil {
			log.Debugf("[%s] Ignoring request: %v", sess.tag, err)
			m.FrameDropped(metrics.DropProtocol)
			continue
		}

		m.FrameReceived(int16(req.Opcode()))
		sess.handle(ctx, req)
	}
}

// authenticate binds the session to an account and lifts the login
// deadline. It runs on the session's read goroutine.
func (sess *Session) authenticate(id uint64, login string) {
	sess.accountID.Store(id)
	sess.login.Store(&login)
	sess.conn.SetReadDeadline(time.Time{})
	sess.server.slog.Infof("[%s] Authenticated as account %d", sess.tag, id)
}

func (sess *Session) reply(r protocol.Reply) {
	sess.writeReply(r, sess.server.cfg.WriteTimeout)
}

func (sess *Session) writeReply(r protocol.Reply, timeout time.Duration) {
	body, err := protocol.EncodeReply(r)
	if err != nil {
		sess.server.slog.Errorf("[%s] Failed to encode reply %d: %v", sess.tag, r.Opcode(), err)
		return
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	sess.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := sess.server.codec.WriteFrame(sess.conn, body); err != nil {
		sess.server.slog.Infof("[%s] Write failed: %v", sess.tag, err)
		sess.conn.Close()
	}
}

func (sess *Session) replyStatus(op protocol.Opcode) {
	sess.reply(protocol.StatusReply{Op: op})
}

func (sess *Session) pushWarning(title, message string) {
	sess.reply(protocol.WarningReply{Title: title, Message: message})
}

func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		sess.conn.Close()
	})
}
