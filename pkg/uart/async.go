package uart

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Port is a blocking serial port. Read returns 0, nil when the read timeout
// expires without data, like go.bug.st/serial ports do.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
}

// Defaults
const (
	DefaultIdleTimeout = 20 * time.Millisecond
	DefaultChunkSize   = 64
)

// Async implements Capability over a Port.
type Async struct {
	// ChunkSize bounds a single Port.Write so an abort takes effect
	// between chunks.
	ChunkSize int

	port     Port
	callback Callback
	rx       *asyncRx
	tx       *asyncTx
	lock     sync.Mutex
}

type asyncRx struct {
	cur  Buffer
	next Buffer
	stop bool
}

type asyncTx struct {
	abort   chan struct{}
	aborted bool
}

// NewAsync creates an Async driver on port.
func NewAsync(port Port) *Async {
	return &Async{ChunkSize: DefaultChunkSize, port: port}
}

// Port returns the underlying port.
func (a *Async) Port() Port {
	return a.port
}

// SetCallback implements Capability.
func (a *Async) SetCallback(cb Callback) error {
	a.lock.Lock()
	a.callback = cb
	a.lock.Unlock()
	return nil
}

// EnableReceive implements Capability. It returns ErrBusy until a
// previous reception has reported EventRxDisabled.
func (a *Async) EnableReceive(buf Buffer, idle time.Duration) error {
	if buf == nil || len(buf.Bytes()) == 0 {
		return ErrInvalidBuffer
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.rx != nil {
		return ErrBusy
	}
	if err := a.port.SetReadTimeout(idle); err != nil {
		return err
	}
	rx := &asyncRx{cur: buf}
	a.rx = rx
	go a.receive(rx)
	return nil
}

// SupplyReceiveBuffer implements Capability.
func (a *Async) SupplyReceiveBuffer(buf Buffer) error {
	if buf == nil || len(buf.Bytes()) == 0 {
		return ErrInvalidBuffer
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	rx := a.rx
	if rx == nil || rx.stop {
		return ErrInactive
	}
	if rx.next != nil {
		return ErrBusy
	}
	rx.next = buf
	return nil
}

// DisableReceive implements Capability.
func (a *Async) DisableReceive() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	rx := a.rx
	if rx == nil || rx.stop {
		return ErrInactive
	}
	rx.stop = true
	return nil
}

// Transmit implements Capability.
func (a *Async) Transmit(p []byte, timeout time.Duration) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.tx != nil {
		return ErrBusy
	}
	tx := &asyncTx{abort: make(chan struct{})}
	a.tx = tx
	go a.transmit(tx, p, timeout)
	return nil
}

// AbortTransmit implements Capability.
func (a *Async) AbortTransmit() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	tx := a.tx
	if tx == nil || tx.aborted {
		return ErrInactive
	}
	tx.aborted = true
	close(tx.abort)
	return nil
}

// Close stops all activity and closes the port.
func (a *Async) Close() error {
	a.DisableReceive()
	a.AbortTransmit()
	return a.port.Close()
}

func (a *Async) emit(ev Event) {
	a.lock.Lock()
	cb := a.callback
	a.lock.Unlock()
	if glog.V(4) {
		glog.Infof("uart %s len=%d off=%d", ev.Type, ev.Len, ev.Offset)
	}
	if cb != nil {
		cb(ev)
	}
}

func (a *Async) receive(rx *asyncRx) {
	a.emit(Event{Type: EventRxBufRequest})
	var fill int
	for {
		a.lock.Lock()
		stop, cur := rx.stop, rx.cur
		a.lock.Unlock()
		if stop {
			a.endReceive(rx, 0)
			return
		}

		data := cur.Bytes()
		n, err := a.port.Read(data[fill:])
		if n > 0 {
			a.emit(Event{Type: EventRxReady, Buf: cur, Offset: fill, Len: n})
			fill += n
		}
		if err != nil && !os.IsTimeout(err) {
			glog.V(2).Infof("uart read stopped: %v", err)
			a.endReceive(rx, StopBreak)
			return
		}
		if fill < len(data) {
			continue
		}

		// current buffer is full, switch to the supplied one.
		a.lock.Lock()
		next := rx.next
		rx.cur, rx.next = next, nil
		a.lock.Unlock()
		fill = 0
		a.emit(Event{Type: EventRxBufReleased, Buf: cur})
		if next == nil {
			// out of buffers, reception disables itself.
			a.endReceive(rx, 0)
			return
		}
		a.emit(Event{Type: EventRxBufRequest})
	}
}

func (a *Async) endReceive(rx *asyncRx, reason StopReason) {
	if reason != 0 {
		a.emit(Event{Type: EventRxStopped, Reason: reason})
	}
	a.lock.Lock()
	cur, next := rx.cur, rx.next
	rx.cur, rx.next, rx.stop = nil, nil, true
	if a.rx == rx {
		a.rx = nil
	}
	a.lock.Unlock()
	if cur != nil {
		a.emit(Event{Type: EventRxBufReleased, Buf: cur})
	}
	if next != nil {
		a.emit(Event{Type: EventRxBufReleased, Buf: next})
	}
	a.emit(Event{Type: EventRxDisabled})
}

func (a *Async) transmit(tx *asyncTx, p []byte, timeout time.Duration) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	chunk := a.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	var sent int
	var aborted bool
	for sent < len(p) && !aborted {
		select {
		case <-tx.abort:
			aborted = true
			continue
		case <-expired:
			glog.V(2).Infof("uart transmit timeout after %d/%d bytes", sent, len(p))
			aborted = true
			continue
		default:
		}
		end := sent + chunk
		if end > len(p) {
			end = len(p)
		}
		n, err := a.port.Write(p[sent:end])
		sent += n
		if err != nil {
			glog.Warningf("uart write: %v", err)
			aborted = true
		}
	}

	a.lock.Lock()
	if a.tx == tx {
		a.tx = nil
	}
	a.lock.Unlock()
	if aborted {
		a.emit(Event{Type: EventTxAborted, Len: sent})
	} else {
		a.emit(Event{Type: EventTxDone, Len: sent})
	}
}
