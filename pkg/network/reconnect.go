package network

import (
	"context"
	"fmt"
	"time"
)

// supervisor is one background reconnect run. ok is written before done is
// closed.
type supervisor struct {
	done chan struct{}
	ok   bool
}

// handleDisconnect is called by the receive pump when its connection is
// gone. It acts at most once per pump set.
// Unless the client is closing it notifies the observer and starts a
// reconnect supervisor.
func (c *Client) handleDisconnect(p *pumpSet) {
	if !p.lost.CompareAndSwap(false, true) {
		return
	}
	p.shutdown()
	c.resetAuth()

	if c.closing.Load() {
		return
	}

	c.mu.Lock()
	current := c.pumps == p
	c.mu.Unlock()
	if !current || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.state.Store(int32(StateReconnecting))
	c.notifyDisconnect()

	s := &supervisor{done: make(chan struct{})}
	c.mu.Lock()
	c.super = s
	c.mu.Unlock()

	c.bg.Add(1)
	go c.supervise(s)
}

func (c *Client) supervise(s *supervisor) {
	defer c.bg.Done()
	defer close(s.done)

	s.ok = c.connectLoop(c.cfg.ReconnectAttempts)
	if s.ok {
		return
	}

	c.mu.Lock()
	if c.super == s {
		c.super = nil
	}
	c.mu.Unlock()
	c.reconnecting.Store(false)

	if c.closing.Load() {
		return
	}
	c.state.Store(int32(StateDisconnected))
	c.log.Warningf("Giving up reconnecting to %s", c.cfg.Address)
	c.notifyWarning("Disconnected",
		fmt.Sprintf("Could not reconnect to %s after %d attempts", c.cfg.Address, c.cfg.ReconnectAttempts))
}

// finishReconnect runs on the first iteration of a receive pump installed
// by a supervisor: it joins the supervisor and clears the reconnecting flag.
// The supervisor closes done right after installing the pump.
func (c *Client) finishReconnect() {
	c.mu.Lock()
	s := c.super
	c.mu.Unlock()
	if s == nil {
		return
	}

	<-s.done
	if !s.ok {
		return
	}

	c.mu.Lock()
	if c.super == s {
		c.super = nil
	}
	c.mu.Unlock()

	if c.reconnecting.CompareAndSwap(true, false) {
		c.log.Notice("Reconnected")
		c.notifyReconnect()
	}
}

// connectLoop dials up to attempts times, zero meaning until Dispose, with
// capped exponential backoff between attempts
func (c *Client) connectLoop(attempts int) bool {
	backoff := c.cfg.BackoffMin

	for i := 0; attempts <= 0 || i < attempts; i++ {
		if c.closing.Load() {
			return false
		}

		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-c.stop:
				return false
			}

			backoff *= 2
			if backoff > c.cfg.BackoffMax {
				backoff = c.cfg.BackoffMax
			}
		}

		err := c.connectOnce()
		if err == nil {
			return true
		}
		if err == errDisposed {
			return false
		}
		c.log.Infof("Connect attempt %d to %s failed: %v", i+1, c.cfg.Address, err)
	}

	return false
}

// connectOnce dials, waits for any previous pumps to exit and installs a
// fresh pump pair on the new connection
func (c *Client) connectOnce() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, err := c.dial(ctx, c.network, c.address)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.pumps
	c.mu.Unlock()

	if old != nil {
		old.shutdown()
		if !old.wait(c.cfg.JoinTimeout) {
			c.log.Warning("Previous pumps still running after join timeout")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing.Load() {
		conn.Close()
		return errDisposed
	}

	p := newPumpSet(conn)
	c.pumps = p
	c.state.Store(int32(StateConnected))
	c.start(p)

	c.log.Noticef("Connected to %s", c.cfg.Address)
	return nil
}
