package uart

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartpipe/pkg/uart/sim"
)

type testBuffer []byte

func (b testBuffer) Bytes() []byte {
	return b
}

type eventRecorder struct {
	lock   sync.Mutex
	events []Event
	ch     chan Event
	// called in callback, like a transport supplying buffers.
	onEvent func(Event)
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 64)}
}

func (r *eventRecorder) callback(ev Event) {
	if fn := r.onEvent; fn != nil {
		fn(ev)
	}
	r.ch <- ev
}

func (r *eventRecorder) waitFor(t *testing.T, typ EventType) Event {
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-r.ch:
			r.lock.Lock()
			r.events = append(r.events, ev)
			r.lock.Unlock()
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", typ)
			return Event{}
		}
	}
}

func (r *eventRecorder) seen(typ EventType) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	var count int
	for _, ev := range r.events {
		if ev.Type == typ {
			count++
		}
	}
	return count
}

func TestEventTypeString(t *testing.T) {
	require.Equal(t, "rx-ready", EventRxReady.String())
	require.Equal(t, "event(42)", EventType(42).String())
	require.Equal(t, "none", StopReason(0).String())
	require.Equal(t, "parity|break", (StopParity | StopBreak).String())
}

func TestAsyncTransmit(t *testing.T) {
	local, remote := sim.Pair()
	a := NewAsync(local)
	a.ChunkSize = 4
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.Transmit([]byte("hello world"), 0))
	ev := rec.waitFor(t, EventTxDone)
	require.Equal(t, 11, ev.Len)

	remote.SetReadTimeout(100 * time.Millisecond)
	buf := make([]byte, 32)
	n, err := remote.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(buf[:n]))
	require.Equal(t, ErrInactive, a.AbortTransmit())
}

func TestAsyncTransmitBusy(t *testing.T) {
	local, _ := sim.Pair()
	blocking := &blockingPort{Port: local, release: make(chan struct{})}
	a := NewAsync(blocking)
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.Transmit([]byte("abc"), 0))
	require.Equal(t, ErrBusy, a.Transmit([]byte("def"), 0))
	close(blocking.release)
	rec.waitFor(t, EventTxDone)
}

func TestAsyncTransmitAbort(t *testing.T) {
	local, _ := sim.Pair()
	blocking := &blockingPort{Port: local, release: make(chan struct{})}
	a := NewAsync(blocking)
	a.ChunkSize = 2
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.Transmit([]byte("abcdef"), 0))
	require.NoError(t, a.AbortTransmit())
	require.Equal(t, ErrInactive, a.AbortTransmit())
	close(blocking.release)
	ev := rec.waitFor(t, EventTxAborted)
	require.True(t, ev.Len < 6)
}

func TestAsyncTransmitTimeout(t *testing.T) {
	local, _ := sim.Pair()
	blocking := &blockingPort{Port: local, release: make(chan struct{})}
	a := NewAsync(blocking)
	a.ChunkSize = 1
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.Transmit([]byte("abc"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	close(blocking.release)
	ev := rec.waitFor(t, EventTxAborted)
	require.Equal(t, 1, ev.Len)
}

func TestAsyncReceive(t *testing.T) {
	local, remote := sim.Pair()
	a := NewAsync(local)
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	buf := make(testBuffer, 16)
	require.NoError(t, a.EnableReceive(buf, 5*time.Millisecond))
	require.Equal(t, ErrBusy, a.EnableReceive(make(testBuffer, 4), 0))
	rec.waitFor(t, EventRxBufRequest)

	remote.Write([]byte("OK\r\n"))
	ev := rec.waitFor(t, EventRxReady)
	require.Equal(t, 0, ev.Offset)
	require.Equal(t, "OK\r\n", string(ev.Buf.Bytes()[ev.Offset:ev.Offset+ev.Len]))

	require.NoError(t, a.DisableReceive())
	require.Equal(t, ErrInactive, a.DisableReceive())
	ev = rec.waitFor(t, EventRxBufReleased)
	require.Equal(t, Buffer(buf), ev.Buf)
	rec.waitFor(t, EventRxDisabled)
	require.Equal(t, ErrInactive, a.SupplyReceiveBuffer(make(testBuffer, 4)))
}

func TestAsyncReceiveSwitchBuffers(t *testing.T) {
	local, remote := sim.Pair()
	a := NewAsync(local)
	rec := newEventRecorder()
	next := make(testBuffer, 4)
	rec.onEvent = func(ev Event) {
		if ev.Type == EventRxBufRequest && next != nil {
			if err := a.SupplyReceiveBuffer(next); err != nil {
				t.Errorf("supply buffer: %v", err)
			}
			next = nil
		}
	}
	a.SetCallback(rec.callback)

	first := make(testBuffer, 4)
	require.NoError(t, a.EnableReceive(first, 5*time.Millisecond))
	remote.Write([]byte("abcdefgh"))

	// first buffer full, switched to the next one, which fills up with no
	// buffer supplied, so reception disables itself.
	rec.waitFor(t, EventRxDisabled)
	require.Equal(t, "abcd", string(first))
	require.Equal(t, 2, rec.seen(EventRxBufReleased))
	require.Equal(t, 2, rec.seen(EventRxBufRequest))

	// can be enabled again right away
	require.NoError(t, a.EnableReceive(make(testBuffer, 4), 5*time.Millisecond))
	require.NoError(t, a.DisableReceive())
}

func TestAsyncReceivePortError(t *testing.T) {
	local, _ := sim.Pair()
	a := NewAsync(&failingPort{Port: local})
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.EnableReceive(make(testBuffer, 4), 5*time.Millisecond))
	ev := rec.waitFor(t, EventRxStopped)
	require.Equal(t, StopBreak, ev.Reason)
	rec.waitFor(t, EventRxDisabled)
}

func TestAsyncEnableBusyUntilDisabled(t *testing.T) {
	local, _ := sim.Pair()
	stalling := &stallingPort{Port: local, reading: make(chan struct{}, 1), release: make(chan struct{})}
	a := NewAsync(stalling)
	rec := newEventRecorder()
	a.SetCallback(rec.callback)

	require.NoError(t, a.EnableReceive(make(testBuffer, 4), 5*time.Millisecond))
	<-stalling.reading
	require.NoError(t, a.DisableReceive())

	// the read in progress holds the previous reception, enable doesn't
	// wait for it.
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.EnableReceive(make(testBuffer, 4), 5*time.Millisecond)
	}()
	select {
	case err := <-errCh:
		require.Equal(t, ErrBusy, err)
	case <-time.After(time.Second):
		t.Fatal("enable receive blocked")
	}

	close(stalling.release)
	rec.waitFor(t, EventRxDisabled)
	require.NoError(t, a.EnableReceive(make(testBuffer, 4), 5*time.Millisecond))
	require.NoError(t, a.Close())
}

func TestAsyncInvalidBuffer(t *testing.T) {
	local, _ := sim.Pair()
	a := NewAsync(local)
	require.Equal(t, ErrInvalidBuffer, a.EnableReceive(nil, 0))
	require.Equal(t, ErrInvalidBuffer, a.EnableReceive(testBuffer{}, 0))
}

// blockingPort blocks writes until release is closed.
type blockingPort struct {
	*sim.Port
	release chan struct{}
}

func (p *blockingPort) Write(b []byte) (int, error) {
	<-p.release
	return p.Port.Write(b)
}

// stallingPort holds reads until release is closed.
type stallingPort struct {
	*sim.Port
	reading chan struct{}
	release chan struct{}
}

func (p *stallingPort) Read(b []byte) (int, error) {
	select {
	case p.reading <- struct{}{}:
	default:
	}
	<-p.release
	return p.Port.Read(b)
}

var errLineBreak = errors.New("line break")

type failingPort struct {
	*sim.Port
}

func (p *failingPort) Read(b []byte) (int, error) {
	return 0, errLineBreak
}
