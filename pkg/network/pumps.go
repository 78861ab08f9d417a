package network

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
)

// pumpSet is the receive and send pump pair bound to one connection
type pumpSet struct {
	conn net.Conn
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	lost atomic.Bool
}

func newPumpSet(conn net.Conn) *pumpSet {
	return &pumpSet{
		conn: conn,
		done: make(chan struct{}),
	}
}

// shutdown closes the connection and tells both pumps to exit
func (p *pumpSet) shutdown() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

func (p *pumpSet) wait(timeout time.Duration) bool {
	return waitTimeout(&p.wg, timeout)
}

func (p *pumpSet) stopped() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// start runs both pumps; called with c.mu held
func (c *Client) start(p *pumpSet) {
	p.wg.Add(2)
	go c.receivePump(p)
	go c.sendPump(p)
}

func (c *Client) receivePump(p *pumpSet) {
	defer p.wg.Done()

	for {
		if c.closing.Load() {
			return
		}

		if c.reconnecting.Load() {
			c.finishReconnect()
		}

		ciphertext, err := c.codec.ReadFrame(p.conn)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrEmptyFrame):
				c.log.Debug("Skipping empty frame")
				continue
			case errors.Is(err, protocol.ErrShortRead):
				c.log.Warningf("Incomplete frame: %v", err)
				continue
			}

			if !c.closing.Load() && !p.stopped() {
				c.log.Noticef("Connection lost: %v", err)
			}
			c.handleDisconnect(p)
			return
		}

		body, err := c.codec.Open(ciphertext)
		if err != nil {
			c.log.Warningf("Dropping frame: %v", err)
			continue
		}

		reply, err := protocol.DecodeReply(body)
		if err != nil {
			c.log.Debugf("Ignoring frame: %v", err)
			continue
		}

		c.deliver(reply, body)
	}
}

func (c *Client) sendPump(p *pumpSet) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-c.stop:
			return
		case body := <-c.sendQ:
			if err := c.writeFrame(p.conn, body); err != nil {
				if c.closing.Load() || p.stopped() {
					return
				}
				// The receive pump sees the closed connection and reconnects
				c.report(err)
				p.shutdown()
				return
			}
		}
	}
}
