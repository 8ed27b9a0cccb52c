// Package pipe defines the byte stream pipe a transport exposes to its
// consumer, usually a command/response engine.
package pipe

import (
	"fmt"
	"sync"
)

// Event is a pipe notification.
type Event int

// Pipe events.
const (
	EventOpened Event = iota
	EventClosed
	EventReceiveReady
	EventTransmitIdle
)

func (e Event) String() string {
	switch e {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventReceiveReady:
		return "receive-ready"
	case EventTransmitIdle:
		return "transmit-idle"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Handler receives pipe events. Events are delivered from a task context
// and never from driver context.
type Handler interface {
	HandlePipeEvent(*Pipe, Event)
}

// HandleEventFunc is the func form of Handler.
type HandleEventFunc func(*Pipe, Event)

// HandlePipeEvent implements Handler.
func (f HandleEventFunc) HandlePipeEvent(p *Pipe, ev Event) {
	f(p, ev)
}

// Backend implements the pipe operations.
type Backend interface {
	// Open opens the pipe. EventOpened is notified once it's done.
	Open() error
	// Transmit accepts up to len(p) bytes for sending without blocking
	// and returns how many were accepted.
	Transmit(p []byte) (int, error)
	// Receive copies received bytes into p without blocking.
	Receive(p []byte) int
	// Close closes the pipe. EventClosed is notified once all activities
	// stopped.
	Close() error
}

// Pipe connects a Backend with a Handler.
type Pipe struct {
	backend Backend
	handler Handler
	open    bool
	// receive-ready notified while no handler was attached.
	rxPending bool
	lock      sync.Mutex
}

// New creates a Pipe on top of the backend.
func New(b Backend) *Pipe {
	return &Pipe{backend: b}
}

// Attach installs the handler. A receive-ready notified while no handler
// was attached is delivered immediately.
func (p *Pipe) Attach(h Handler) {
	p.lock.Lock()
	p.handler = h
	replay := h != nil && p.rxPending
	if replay {
		p.rxPending = false
	}
	p.lock.Unlock()
	if replay {
		h.HandlePipeEvent(p, EventReceiveReady)
	}
}

// Release detaches the handler.
func (p *Pipe) Release() {
	p.lock.Lock()
	p.handler = nil
	p.lock.Unlock()
}

// Notify is called by the backend to deliver an event.
func (p *Pipe) Notify(ev Event) {
	p.lock.Lock()
	switch ev {
	case EventOpened:
		p.open = true
	case EventClosed:
		p.open, p.rxPending = false, false
	}
	h := p.handler
	if h == nil && ev == EventReceiveReady {
		p.rxPending = true
	}
	p.lock.Unlock()
	if h != nil {
		h.HandlePipeEvent(p, ev)
	}
}

// IsOpen reports whether the last open/close notification was EventOpened.
func (p *Pipe) IsOpen() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.open
}

// Open opens the backend.
func (p *Pipe) Open() error {
	return p.backend.Open()
}

// Transmit sends bytes via the backend.
func (p *Pipe) Transmit(b []byte) (int, error) {
	return p.backend.Transmit(b)
}

// Receive reads bytes from the backend.
func (p *Pipe) Receive(b []byte) int {
	return p.backend.Receive(b)
}

// Close closes the backend.
func (p *Pipe) Close() error {
	return p.backend.Close()
}
