package transport

import (
	"strings"
	"sync/atomic"
)

// State is the set of transport flags.
type State uint32

// State flags.
const (
	StateOpen State = 1 << iota
	StateTransmitting
	StateRecovering
	// set from enabling reception until the UART reports rx-disabled.
	stateReceiving
	// armed by Close, cleared when the closed notification is scheduled.
	stateClosing
	// set from scheduling the closed notification until it's delivered.
	stateClosedPending

	stateActive = StateOpen | StateTransmitting | StateRecovering
	stateBusy   = stateActive | stateReceiving
)

// IsOpen indicates StateOpen is set.
func (s State) IsOpen() bool {
	return s&StateOpen != 0
}

// IsTransmitting indicates StateTransmitting is set.
func (s State) IsTransmitting() bool {
	return s&StateTransmitting != 0
}

// IsRecovering indicates StateRecovering is set.
func (s State) IsRecovering() bool {
	return s&StateRecovering != 0
}

// IsFullyIdle indicates none of the flags is set and the UART isn't
// receiving.
func (s State) IsFullyIdle() bool {
	return s&stateBusy == 0
}

func (s State) String() string {
	if s&stateActive == 0 {
		return "closed"
	}
	var names []string
	if s.IsOpen() {
		names = append(names, "open")
	}
	if s.IsTransmitting() {
		names = append(names, "transmitting")
	}
	if s.IsRecovering() {
		names = append(names, "recovering")
	}
	return strings.Join(names, "|")
}

// stateMachine holds the State, all transitions are atomic.
type stateMachine struct {
	v uint32
}

func (m *stateMachine) Load() State {
	return State(atomic.LoadUint32(&m.v))
}

// update applies fn until the CAS succeeds or fn declines. It returns the
// state fn was applied to.
func (m *stateMachine) update(fn func(State) (State, bool)) (State, bool) {
	for {
		old := m.Load()
		s, ok := fn(old)
		if !ok {
			return old, false
		}
		if atomic.CompareAndSwapUint32(&m.v, uint32(old), uint32(s)) {
			return old, true
		}
	}
}

// TryOpen sets StateOpen on a fully idle transport and marks reception
// active for the enable that follows. It returns false without error if
// already open, and ErrBusy if the previous session hasn't wound down,
// including its closed notification.
func (m *stateMachine) TryOpen() (bool, error) {
	old, ok := m.update(func(s State) (State, bool) {
		if s != 0 {
			return s, false
		}
		return StateOpen | stateReceiving, true
	})
	switch {
	case ok:
		return true, nil
	case old.IsOpen():
		return false, nil
	default:
		return false, ErrBusy
	}
}

// RollbackOpen undoes TryOpen without arming the closed notification.
func (m *stateMachine) RollbackOpen() {
	m.update(func(s State) (State, bool) {
		return s &^ (StateOpen | stateReceiving), s.IsOpen()
	})
}

// BeginTransmit sets StateTransmitting, false if it's already set.
func (m *stateMachine) BeginTransmit() bool {
	_, ok := m.update(func(s State) (State, bool) {
		return s | StateTransmitting, !s.IsTransmitting()
	})
	return ok
}

func (m *stateMachine) EndTransmit() {
	m.update(func(s State) (State, bool) {
		return s &^ StateTransmitting, s.IsTransmitting()
	})
}

// EnterRecovery sets StateRecovering if open, not recovering and not
// receiving. Reception is marked active for the enable that follows.
func (m *stateMachine) EnterRecovery() bool {
	_, ok := m.update(func(s State) (State, bool) {
		return s | StateRecovering | stateReceiving,
			s.IsOpen() && !s.IsRecovering() && s&stateReceiving == 0
	})
	return ok
}

// FinishRecovery clears StateRecovering after reception is enabled again
// and reports whether the transport is still open.
func (m *stateMachine) FinishRecovery() bool {
	old, _ := m.update(func(s State) (State, bool) {
		return s &^ StateRecovering, true
	})
	return old.IsOpen()
}

// AbortRecovery clears StateRecovering when reception couldn't be enabled
// and reports whether the transport is still open.
func (m *stateMachine) AbortRecovery() bool {
	old, _ := m.update(func(s State) (State, bool) {
		return s &^ (StateRecovering | stateReceiving), true
	})
	return old.IsOpen()
}

// EndReceive clears the reception mark when the UART reports rx-disabled.
// It returns false if reception wasn't active.
func (m *stateMachine) EndReceive() bool {
	_, ok := m.update(func(s State) (State, bool) {
		return s &^ stateReceiving, s&stateReceiving != 0
	})
	return ok
}

// Close clears StateOpen and arms the closed notification.
func (m *stateMachine) Close() (wasOpen, recovering bool) {
	old, ok := m.update(func(s State) (State, bool) {
		return (s &^ StateOpen) | stateClosing, s.IsOpen()
	})
	return ok, old.IsRecovering()
}

// TakeClosed returns true exactly once per Close, when the transport
// becomes fully idle. The transport can't be opened again until
// ClosedDelivered.
func (m *stateMachine) TakeClosed() bool {
	_, ok := m.update(func(s State) (State, bool) {
		return (s &^ stateClosing) | stateClosedPending, s&stateClosing != 0 && s.IsFullyIdle()
	})
	return ok
}

func (m *stateMachine) ClosedDelivered() {
	m.update(func(s State) (State, bool) {
		return s &^ stateClosedPending, s&stateClosedPending != 0
	})
}
