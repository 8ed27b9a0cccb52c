package pipe

import (
	"context"
	"io"
	"sync"
)

// Conn is a blocking io.ReadWriteCloser over an opened Pipe.
type Conn struct {
	pipe *Pipe

	readyCh   chan struct{}
	idleCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	readLock  sync.Mutex
	writeLock sync.Mutex
}

// NewConn attaches a Conn to the pipe.
func NewConn(p *Pipe) *Conn {
	c := &Conn{
		pipe:    p,
		readyCh: make(chan struct{}, 1),
		idleCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}
	p.Attach(c)
	return c
}

// HandlePipeEvent implements Handler.
func (c *Conn) HandlePipeEvent(p *Pipe, ev Event) {
	switch ev {
	case EventReceiveReady:
		wakeUp(c.readyCh)
	case EventTransmitIdle:
		wakeUp(c.idleCh)
	case EventClosed:
		c.shutdown()
	}
}

// Done is closed once the pipe closed.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// Read implements io.Reader. It blocks until data is available and
// returns io.EOF after the pipe closed and everything was read.
func (c *Conn) Read(b []byte) (int, error) {
	return c.ReadContext(context.Background(), b)
}

// ReadContext is Read which also returns when ctx is done.
func (c *Conn) ReadContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	c.readLock.Lock()
	defer c.readLock.Unlock()
	for {
		if n := c.pipe.Receive(b); n > 0 {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-c.readyCh:
		case <-c.doneCh:
			if n := c.pipe.Receive(b); n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
	}
}

// Write implements io.Writer. It returns when all bytes are accepted by
// the pipe, not when they're sent.
func (c *Conn) Write(b []byte) (int, error) {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	var written int
	for written < len(b) {
		select {
		case <-c.doneCh:
			return written, io.ErrClosedPipe
		default:
		}
		n, err := c.pipe.Transmit(b[written:])
		if err != nil {
			return written, err
		}
		written += n
		if written >= len(b) {
			break
		}
		select {
		case <-c.idleCh:
		case <-c.doneCh:
			return written, io.ErrClosedPipe
		}
	}
	return written, nil
}

// Close releases the pipe and closes it.
func (c *Conn) Close() error {
	c.pipe.Release()
	err := c.pipe.Close()
	c.shutdown()
	return err
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.doneCh) })
}

func wakeUp(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
