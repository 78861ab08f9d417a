package network

import "github.com/ZentaChain/zentalk-chat/pkg/protocol"

// SessionObserver receives client events. Calls are made one at a time from
// the client's dispatcher goroutine, in arrival order.
type SessionObserver interface {
	// OnMessage is called for every decoded reply except server warnings,
	// which go to OnWarning. raw is the decrypted frame body including the
	// opcode.
	OnMessage(op protocol.Opcode, reply protocol.Reply, raw []byte)

	// OnDisconnect is called when the connection drops and a reconnect
	// begins
	OnDisconnect()

	// OnReconnect is called once a reconnect has succeeded
	OnReconnect()

	// OnWarning reports a failure worth showing to the user
	OnWarning(title, description string)
}

// ObserverFuncs adapts plain functions to SessionObserver. Nil fields are
// skipped.
type ObserverFuncs struct {
	Message    func(op protocol.Opcode, reply protocol.Reply, raw []byte)
	Disconnect func()
	Reconnect  func()
	Warning    func(title, description string)
}

func (o ObserverFuncs) OnMessage(op protocol.Opcode, reply protocol.Reply, raw []byte) {
	if o.Message != nil {
		o.Message(op, reply, raw)
	}
}

func (o ObserverFuncs) OnDisconnect() {
	if o.Disconnect != nil {
		o.Disconnect()
	}
}

func (o ObserverFuncs) OnReconnect() {
	if o.Reconnect != nil {
		o.Reconnect()
	}
}

func (o ObserverFuncs) OnWarning(title, description string) {
	if o.Warning != nil {
		o.Warning(title, description)
	}
}
