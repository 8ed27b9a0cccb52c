package pipe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errNotOpen = errors.New("not open")

// testBackend accepts at most limit bytes per Transmit.
type testBackend struct {
	pipe  *Pipe
	limit int

	lock   sync.Mutex
	open   bool
	rx     bytes.Buffer
	tx     bytes.Buffer
	closes int
}

func (b *testBackend) Open() error {
	b.lock.Lock()
	b.open = true
	b.lock.Unlock()
	b.pipe.Notify(EventOpened)
	return nil
}

func (b *testBackend) Transmit(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.open {
		return 0, errNotOpen
	}
	if len(p) > b.limit {
		p = p[:b.limit]
	}
	return b.tx.Write(p)
}

func (b *testBackend) Receive(p []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	n, _ := b.rx.Read(p)
	return n
}

func (b *testBackend) Close() error {
	b.lock.Lock()
	b.open = false
	b.closes++
	b.lock.Unlock()
	b.pipe.Notify(EventClosed)
	return nil
}

func (b *testBackend) inject(s string) {
	b.lock.Lock()
	b.rx.WriteString(s)
	b.lock.Unlock()
	b.pipe.Notify(EventReceiveReady)
}

func newTestPipe(limit int) (*Pipe, *testBackend) {
	b := &testBackend{limit: limit}
	b.pipe = New(b)
	return b.pipe, b
}

func TestEventString(t *testing.T) {
	testCases := []struct {
		ev   Event
		name string
	}{
		{EventOpened, "opened"},
		{EventClosed, "closed"},
		{EventReceiveReady, "receive-ready"},
		{EventTransmitIdle, "transmit-idle"},
		{Event(9), "event(9)"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.name, tc.ev.String())
		})
	}
}

func TestPipeOpenClose(t *testing.T) {
	p, _ := newTestPipe(16)
	var events []Event
	p.Attach(HandleEventFunc(func(_ *Pipe, ev Event) {
		events = append(events, ev)
	}))
	require.False(t, p.IsOpen())
	require.NoError(t, p.Open())
	require.True(t, p.IsOpen())
	require.NoError(t, p.Close())
	require.False(t, p.IsOpen())
	require.Equal(t, []Event{EventOpened, EventClosed}, events)
}

func TestPipeReleaseStopsEvents(t *testing.T) {
	p, _ := newTestPipe(16)
	var count int
	p.Attach(HandleEventFunc(func(*Pipe, Event) { count++ }))
	p.Open()
	p.Release()
	p.Close()
	require.Equal(t, 1, count)
}

func TestPipeAttachReplaysReceiveReady(t *testing.T) {
	p, b := newTestPipe(16)
	p.Open()
	b.inject("abc")
	var events []Event
	p.Attach(HandleEventFunc(func(_ *Pipe, ev Event) {
		events = append(events, ev)
	}))
	require.Equal(t, []Event{EventReceiveReady}, events)

	// only once
	p.Release()
	p.Attach(HandleEventFunc(func(_ *Pipe, ev Event) {
		events = append(events, ev)
	}))
	require.Len(t, events, 1)
}

func TestConnRead(t *testing.T) {
	p, b := newTestPipe(16)
	p.Open()
	c := NewConn(p)

	resultCh := make(chan string, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := c.Read(buf)
		resultCh <- string(buf[:n])
	}()
	time.Sleep(5 * time.Millisecond)
	b.inject("hello")
	select {
	case s := <-resultCh:
		require.Equal(t, "hello", s)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("read not woken")
	}
}

func TestConnReadDrainsBeforeEOF(t *testing.T) {
	p, b := newTestPipe(16)
	p.Open()
	c := NewConn(p)
	b.inject("xy")
	b.Close()

	buf := make([]byte, 8)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "xy", string(buf[:n]))
	n, err = c.Read(buf)
	require.Equal(t, io.EOF, err)
	require.Zero(t, n)
}

func TestConnWriteWaitsForIdle(t *testing.T) {
	p, b := newTestPipe(4)
	p.Open()
	c := NewConn(p)

	doneCh := make(chan int, 1)
	go func() {
		n, _ := c.Write([]byte("0123456789"))
		doneCh <- n
	}()
	for i := 0; i < 2; i++ {
		time.Sleep(5 * time.Millisecond)
		p.Notify(EventTransmitIdle)
	}
	select {
	case n := <-doneCh:
		require.Equal(t, 10, n)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("write not completed")
	}
	require.Equal(t, "0123456789", b.tx.String())
}

func TestConnWriteClosed(t *testing.T) {
	p, b := newTestPipe(2)
	p.Open()
	c := NewConn(p)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Write([]byte("0123"))
		errCh <- err
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.Equal(t, io.ErrClosedPipe, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("write not unblocked")
	}
	require.Equal(t, 1, b.closes)
	require.False(t, p.IsOpen())
}

func TestConnReadContext(t *testing.T) {
	p, _ := newTestPipe(16)
	p.Open()
	c := NewConn(p)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	n, err := c.ReadContext(ctx, make([]byte, 4))
	require.Zero(t, n)
	require.Equal(t, context.DeadlineExceeded, err)
}
