// Package sim provides in-memory serial ports for tests and demos.
package sim

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Port is one end of an in-memory serial line. It implements uart.Port.
type Port struct {
	peer *Port

	buf      bytes.Buffer
	timeout  time.Duration
	closed   bool
	lock     sync.Mutex
	readable chan struct{}
	closeCh  chan struct{}
}

// Pair creates two connected ports, bytes written to one are read from
// the other.
func Pair() (*Port, *Port) {
	a, b := newPort(), newPort()
	a.peer, b.peer = b, a
	return a, b
}

func newPort() *Port {
	return &Port{
		readable: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
}

// SetReadTimeout sets how long Read waits for data. Non-positive waits
// forever.
func (p *Port) SetReadTimeout(d time.Duration) error {
	p.lock.Lock()
	p.timeout = d
	p.lock.Unlock()
	return nil
}

// Read implements io.Reader. It returns 0, nil when the read timeout
// expires and io.EOF once the port is closed.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.Lock()
	timeout := p.timeout
	p.lock.Unlock()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		p.lock.Lock()
		if p.closed {
			p.lock.Unlock()
			return 0, io.EOF
		}
		if p.buf.Len() > 0 {
			n, _ := p.buf.Read(b)
			p.lock.Unlock()
			return n, nil
		}
		p.lock.Unlock()
		select {
		case <-p.readable:
		case <-p.closeCh:
		case <-expired:
			return 0, nil
		}
	}
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.Lock()
	closed := p.closed
	p.lock.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return p.peer.inject(b)
}

// Inject makes b readable from this port as if the peer had sent it.
func (p *Port) Inject(b []byte) (int, error) {
	return p.inject(b)
}

func (p *Port) inject(b []byte) (int, error) {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return 0, io.ErrClosedPipe
	}
	n, _ := p.buf.Write(b)
	p.lock.Unlock()
	select {
	case p.readable <- struct{}{}:
	default:
	}
	return n, nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.closed {
		p.closed = true
		close(p.closeCh)
	}
	return nil
}

// Echo reads from p and writes everything back until p is closed.
func Echo(p *Port) error {
	buf := make([]byte, 256)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			if _, werr := p.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
