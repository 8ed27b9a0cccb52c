package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/uartpipe/pkg/framework"
	"github.com/robotalks/uartpipe/pkg/pipe"
	"github.com/robotalks/uartpipe/pkg/uart"
)

// Transport is a pipe.Backend over a uart.Capability.
type Transport struct {
	conf  Config
	uart  uart.Capability
	pipe  *pipe.Pipe
	arena *Arena
	queue *rxQueue
	ring  *Ring
	state stateMachine
	stats counters

	// rxLock serializes Receive and guards partial.
	rxLock  sync.Mutex
	partial Descriptor
	// set when recovery couldn't re-arm reception, Receive retries.
	rearmDeferred int32

	receiveReadyWork *fx.Work
	transmitIdleWork *fx.Work
	closedWork       *fx.Work
}

// New creates a Transport and registers it as the callback of the UART.
// Notifications are delivered from wq.
func New(u uart.Capability, wq *fx.WorkQueue, conf Config) (*Transport, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	t := &Transport{
		conf:  conf,
		uart:  u,
		arena: NewArena(conf.RxBufferCount, conf.BufferSize()),
		queue: newRxQueue(conf.RxQueueDepth),
		ring:  NewRing(conf.TxBufferSize),
	}
	t.pipe = pipe.New(t)
	t.receiveReadyWork = wq.NewWork(t.notifyWork(pipe.EventReceiveReady, nil))
	t.transmitIdleWork = wq.NewWork(t.notifyWork(pipe.EventTransmitIdle, nil))
	// Open is refused until the closed notification returns.
	t.closedWork = wq.NewWork(t.notifyWork(pipe.EventClosed, t.state.ClosedDelivered))
	if err := u.SetCallback(t.HandleEvent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHardwareRejected, err)
	}
	return t, nil
}

func (t *Transport) notifyWork(ev pipe.Event, delivered func()) fx.WorkHandler {
	return fx.HandleWorkFunc(func(context.Context) {
		glog.V(3).Infof("transport notify %s", ev)
		t.pipe.Notify(ev)
		if delivered != nil {
			delivered()
		}
	})
}

// Pipe returns the pipe backed by this transport.
func (t *Transport) Pipe() *pipe.Pipe {
	return t.pipe
}

// Config returns the config in use.
func (t *Transport) Config() Config {
	return t.conf
}

// State returns the current flags.
func (t *Transport) State() State {
	return t.state.Load() & stateActive
}

// Stats returns a snapshot of counters.
func (t *Transport) Stats() Stats {
	s := Stats{
		State:              t.State(),
		BuffersOutstanding: t.arena.Outstanding(),
		BuffersTotal:       t.arena.Cap(),
		RxQueued:           t.queue.Len(),
	}
	t.stats.snapshot(&s)
	return s
}

// Open implements pipe.Backend. Opening an open transport does nothing.
// EventOpened is notified before Open returns. Until the previous session
// has stopped receiving and its EventClosed is delivered, Open returns
// ErrBusy.
func (t *Transport) Open() error {
	if s := t.state.Load(); s.IsOpen() {
		return nil
	} else if s != 0 {
		return ErrBusy
	}
	atomic.StoreInt32(&t.rearmDeferred, 0)
	t.rxLock.Lock()
	t.dropPartial()
	t.queue.Purge()
	t.rxLock.Unlock()

	buf, err := t.arena.Allocate()
	if err != nil {
		return err
	}
	opened, err := t.state.TryOpen()
	if !opened {
		buf.Release()
		return err
	}
	if err := t.uart.EnableReceive(buf, t.conf.RxIdleTimeout); err != nil {
		buf.Release()
		t.state.RollbackOpen()
		glog.Errorf("transport enable receive failed: %v", err)
		return fmt.Errorf("%w: %v", ErrHardwareRejected, err)
	}

	// resume bytes left from the previous session.
	if t.state.BeginTransmit() {
		if staged := t.ring.Len(); staged == 0 {
			t.state.EndTransmit()
		} else if err := t.submit(); err != nil {
			glog.Warningf("transport resume %d bytes: %v", staged, err)
			t.state.EndTransmit()
		} else {
			glog.V(2).Infof("transport resumed %d staged bytes", staged)
		}
	}

	glog.V(2).Info("transport opened")
	t.pipe.Notify(pipe.EventOpened)
	return nil
}

// Transmit implements pipe.Backend. It stages p and starts sending,
// returning how many bytes were accepted. If a transmit is outstanding it
// accepts nothing and EventTransmitIdle follows on completion.
func (t *Transport) Transmit(p []byte) (int, error) {
	if !t.state.Load().IsOpen() {
		return 0, ErrPermissionDenied
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !t.state.BeginTransmit() {
		return 0, nil
	}
	if !t.state.Load().IsOpen() {
		// closed in between
		t.state.EndTransmit()
		t.checkClosed()
		return 0, ErrPermissionDenied
	}

	if t.ring.Len() == 0 {
		t.ring.Reset()
	}
	n := t.ring.Put(p)
	if err := t.submit(); err != nil {
		t.ring.Unput(n)
		t.state.EndTransmit()
		t.checkClosed()
		t.stats.add(&t.stats.txRejected, 1)
		glog.Warningf("transport transmit: %v", err)
		return 0, err
	}
	return n, nil
}

// Receive implements pipe.Backend. It never blocks.
func (t *Transport) Receive(p []byte) int {
	var n int
	if len(p) > 0 {
		t.rxLock.Lock()
		for n < len(p) {
			if t.partial.Buf == nil {
				d, ok := t.queue.Pop(context.TODO(), false)
				if !ok {
					break
				}
				t.partial = d
			}
			c := copy(p[n:], t.partial.Data)
			n += c
			t.partial.Data = t.partial.Data[c:]
			if len(t.partial.Data) == 0 {
				t.dropPartial()
			}
		}
		t.rxLock.Unlock()
	}
	if atomic.CompareAndSwapInt32(&t.rearmDeferred, 1, 0) {
		glog.V(2).Info("transport retry deferred recovery")
		t.recover()
		t.checkClosed()
	}
	return n
}

// Close implements pipe.Backend. It doesn't wait for the UART, EventClosed
// is notified once transmit is done and the UART reports reception
// disabled. Closing a closed transport does nothing.
func (t *Transport) Close() error {
	wasOpen, recovering := t.state.Close()
	if !wasOpen {
		return nil
	}
	atomic.StoreInt32(&t.rearmDeferred, 0)
	if t.state.Load().IsTransmitting() {
		if err := t.uart.AbortTransmit(); err != nil && !errors.Is(err, uart.ErrInactive) {
			glog.Warningf("transport abort transmit: %v", err)
		}
	}
	// a recovering transport disables reception when recovery completes.
	if !recovering {
		if err := t.uart.DisableReceive(); err != nil && !errors.Is(err, uart.ErrInactive) {
			glog.Warningf("transport disable receive: %v", err)
		}
	}
	glog.V(2).Info("transport closing")
	t.checkClosed()
	return nil
}

// submit sends the staged bytes, the caller holds StateTransmitting.
func (t *Transport) submit() error {
	if err := t.uart.Transmit(t.ring.Claim(0), t.conf.TxTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrHardwareRejected, err)
	}
	return nil
}

// dropPartial releases the partially read descriptor, rxLock is held.
func (t *Transport) dropPartial() {
	if t.partial.Buf != nil {
		t.partial.Buf.Release()
	}
	t.partial = Descriptor{}
}

func (t *Transport) checkClosed() {
	if t.state.TakeClosed() {
		glog.V(2).Info("transport closed")
		t.closedWork.Submit()
	}
}
