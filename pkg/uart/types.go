package uart

import (
	"fmt"
	"strings"
	"time"
)

// Buffer is a receive buffer handed to the driver. The driver fills
// Bytes() and refers back to the same Buffer in events.
type Buffer interface {
	Bytes() []byte
}

// EventType identifies a driver event.
type EventType int

// Event types.
const (
	// EventTxDone reports a transmit completed, Len bytes were sent.
	EventTxDone EventType = iota
	// EventTxAborted reports a transmit was aborted after Len bytes.
	EventTxAborted
	// EventRxReady reports Len bytes at Offset of Buf are ready.
	EventRxReady
	// EventRxBufRequest asks for the next receive buffer.
	EventRxBufRequest
	// EventRxBufReleased hands Buf back, the driver no longer uses it.
	EventRxBufReleased
	// EventRxDisabled reports reception is disabled.
	EventRxDisabled
	// EventRxStopped reports reception stopped on a line condition.
	EventRxStopped
)

var eventTypeNames = [...]string{
	EventTxDone:        "tx-done",
	EventTxAborted:     "tx-aborted",
	EventRxReady:       "rx-ready",
	EventRxBufRequest:  "rx-buf-request",
	EventRxBufReleased: "rx-buf-released",
	EventRxDisabled:    "rx-disabled",
	EventRxStopped:     "rx-stopped",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// StopReason is a bit set of line conditions stopping reception.
type StopReason uint8

// Stop reasons.
const (
	StopOverrun StopReason = 1 << iota
	StopParity
	StopFraming
	StopBreak
	StopCollision
	StopNoise
)

var stopReasonNames = []string{"overrun", "parity", "framing", "break", "collision", "noise"}

func (r StopReason) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	for i, name := range stopReasonNames {
		if r&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// Event is delivered to the Callback. Which fields are meaningful
// depends on Type.
type Event struct {
	Type   EventType
	Len    int
	Offset int
	Buf    Buffer
	Reason StopReason
}

// Callback receives driver events. It is invoked from driver context and
// must not block.
type Callback func(Event)

// Capability is the asynchronous UART API a transport is built on.
// All calls return immediately, completion is reported through the
// Callback.
type Capability interface {
	// SetCallback installs the event callback.
	SetCallback(Callback) error
	// EnableReceive starts reception into buf. Data is reported after
	// idle time without new bytes or when buf is full. It fails with
	// ErrBusy until the previous reception reported EventRxDisabled.
	EnableReceive(buf Buffer, idle time.Duration) error
	// SupplyReceiveBuffer answers EventRxBufRequest.
	SupplyReceiveBuffer(buf Buffer) error
	// DisableReceive stops reception. Buffers are released and
	// EventRxDisabled follows.
	DisableReceive() error
	// Transmit starts sending p. p must stay untouched until
	// EventTxDone or EventTxAborted. timeout <= 0 waits forever.
	Transmit(p []byte, timeout time.Duration) error
	// AbortTransmit aborts the transmit in progress.
	AbortTransmit() error
}
