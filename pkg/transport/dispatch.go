package transport

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/uartpipe/pkg/uart"
)

// HandleEvent is the uart.Callback of the transport. It runs in driver
// context and never blocks.
func (t *Transport) HandleEvent(ev uart.Event) {
	switch ev.Type {
	case uart.EventTxDone, uart.EventTxAborted:
		t.txCompleted(ev)
	case uart.EventRxBufRequest:
		t.rxBufRequested()
	case uart.EventRxBufReleased:
		if buf, ok := t.arena.Own(ev.Buf); ok {
			buf.Release()
		} else {
			glog.Warningf("transport ignored release of foreign buffer")
		}
	case uart.EventRxReady:
		t.rxReady(ev)
	case uart.EventRxDisabled:
		if !t.state.EndReceive() {
			glog.Warningf("transport ignored %s, reception not active", ev.Type)
		} else if t.state.Load().IsOpen() {
			t.recover()
		}
	case uart.EventRxStopped:
		t.stats.add(&t.stats.rxStops, 1)
		glog.Warningf("transport receive stopped: %s", ev.Reason)
	default:
		glog.Warningf("transport ignored uart event %s", ev.Type)
	}
	t.checkClosed()
}

func (t *Transport) txCompleted(ev uart.Event) {
	if !t.state.Load().IsTransmitting() {
		glog.Warningf("transport unexpected %s", ev.Type)
		return
	}
	sent := t.ring.Advance(ev.Len)
	t.stats.add(&t.stats.txBytes, sent)
	if ev.Type == uart.EventTxAborted {
		t.stats.add(&t.stats.txAborts, 1)
	}
	remaining := t.ring.Len()
	// bytes left unsent are resubmitted while open, otherwise kept
	// staged for the next Open.
	if remaining > 0 && t.state.Load().IsOpen() {
		err := t.submit()
		if err == nil {
			return
		}
		t.stats.add(&t.stats.txRejected, 1)
		glog.Warningf("transport resubmit %d bytes: %v", remaining, err)
	}
	if remaining > 0 {
		glog.V(2).Infof("transport %d bytes staged after %s", remaining, ev.Type)
	}
	t.state.EndTransmit()
	if t.state.Load().IsOpen() {
		t.transmitIdleWork.Submit()
	}
}

func (t *Transport) rxBufRequested() {
	buf, err := t.arena.Allocate()
	if err != nil {
		// the UART disables reception once the current buffer is full.
		t.stats.add(&t.stats.rxAllocFailures, 1)
		glog.V(2).Info("transport no buffer for uart")
		return
	}
	if err := t.uart.SupplyReceiveBuffer(buf); err != nil {
		buf.Release()
		glog.V(2).Infof("transport supply buffer: %v", err)
	}
}

func (t *Transport) rxReady(ev uart.Event) {
	buf, ok := t.arena.Own(ev.Buf)
	if !ok {
		glog.Warningf("transport ignored data in foreign buffer")
		return
	}
	if ev.Len <= 0 {
		return
	}
	data := buf.Bytes()
	if ev.Offset < 0 || ev.Offset+ev.Len > len(data) {
		glog.Errorf("transport data out of buffer: off=%d len=%d size=%d", ev.Offset, ev.Len, len(data))
		return
	}
	buf.Retain()
	t.stats.add(&t.stats.rxBytes, ev.Len)
	d := Descriptor{Buf: buf, Data: data[ev.Offset : ev.Offset+ev.Len]}
	if err := t.queue.TryPush(d); err != nil {
		buf.Release()
		t.stats.add(&t.stats.rxDropped, 1)
		t.stats.add(&t.stats.rxDroppedBytes, ev.Len)
		glog.Warningf("transport dropped %d received bytes: %v", ev.Len, err)
		return
	}
	if t.state.Load().IsOpen() {
		t.receiveReadyWork.Submit()
	}
}

// recover re-arms reception the UART disabled on its own.
func (t *Transport) recover() {
	if !t.state.EnterRecovery() {
		return
	}
	buf, err := t.arena.Allocate()
	if err != nil {
		t.stats.add(&t.stats.rxAllocFailures, 1)
		glog.V(2).Info("transport recovery deferred, no buffer")
		t.deferRecovery()
		return
	}
	if err := t.uart.EnableReceive(buf, t.conf.RxIdleTimeout); err != nil {
		buf.Release()
		glog.Errorf("transport recovery enable receive: %v", err)
		t.deferRecovery()
		return
	}
	t.stats.add(&t.stats.rxRecoveries, 1)
	if !t.state.FinishRecovery() {
		// closed during recovery, Close left reception to us. The closed
		// notification waits for rx-disabled.
		glog.V(2).Info("transport closed during recovery")
		if err := t.uart.DisableReceive(); err != nil {
			glog.Warningf("transport disable receive: %v", err)
		}
	}
}

func (t *Transport) deferRecovery() {
	if t.state.AbortRecovery() {
		atomic.StoreInt32(&t.rearmDeferred, 1)
	}
}
