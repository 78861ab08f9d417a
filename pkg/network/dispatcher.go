package network

import (
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"
)

// Dispatcher runs posted functions one at a time on its own goroutine
type Dispatcher struct {
	queue chan func()
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	log   *logging.Logger
}

// NewDispatcher starts a dispatcher with a queue of size entries
func NewDispatcher(size int, log *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   log,
	}
	go d.run()
	return d
}

// Post queues fn. It blocks while the queue is full and returns false once
// the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.stop:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	case <-d.stop:
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case fn := <-d.queue:
			d.call(fn)
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil && d.log != nil {
			d.log.Errorf("Observer panic: %v", r)
		}
	}()
	fn()
}

// Close stops the dispatcher, dropping queued functions, and waits up to
// timeout for the running one to return
func (d *Dispatcher) Close(timeout time.Duration) bool {
	d.once.Do(func() { close(d.stop) })

	select {
	case <-d.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
