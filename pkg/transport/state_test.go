package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	testCases := []struct {
		state State
		str   string
	}{
		{0, "closed"},
		{stateClosing, "closed"},
		{StateOpen, "open"},
		{StateOpen | StateTransmitting, "open|transmitting"},
		{StateTransmitting | StateRecovering, "transmitting|recovering"},
	}
	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			require.Equal(t, tc.str, tc.state.String())
		})
	}
}

func TestStateOpen(t *testing.T) {
	var m stateMachine
	opened, err := m.TryOpen()
	require.NoError(t, err)
	require.True(t, opened)
	opened, err = m.TryOpen()
	require.NoError(t, err)
	require.False(t, opened)

	m.RollbackOpen()
	require.Equal(t, State(0), m.Load())
	require.False(t, m.TakeClosed())
}

func TestStateOpenBusy(t *testing.T) {
	testCases := []struct {
		name  string
		state State
	}{
		{"transmitting", StateTransmitting},
		{"recovering", StateRecovering},
		{"receiving", stateReceiving},
		{"closing", stateClosing},
		{"closed-pending", stateClosedPending},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := stateMachine{v: uint32(tc.state)}
			opened, err := m.TryOpen()
			require.False(t, opened)
			require.Equal(t, ErrBusy, err)
		})
	}
}

func TestStateTransmit(t *testing.T) {
	var m stateMachine
	m.TryOpen()
	require.True(t, m.BeginTransmit())
	require.False(t, m.BeginTransmit())
	require.True(t, m.Load().IsTransmitting())
	m.EndTransmit()
	require.False(t, m.Load().IsTransmitting())
	require.True(t, m.BeginTransmit())
}

func TestStateRecovery(t *testing.T) {
	var m stateMachine
	require.False(t, m.EnterRecovery())
	m.TryOpen()
	// reception is still active
	require.False(t, m.EnterRecovery())
	require.True(t, m.EndReceive())
	require.False(t, m.EndReceive())
	require.True(t, m.EnterRecovery())
	require.False(t, m.EnterRecovery())
	require.True(t, m.FinishRecovery())
	require.False(t, m.Load().IsRecovering())
	require.False(t, m.EnterRecovery())
}

func TestStateRecoveryAborted(t *testing.T) {
	var m stateMachine
	m.TryOpen()
	m.EndReceive()
	require.True(t, m.EnterRecovery())
	require.True(t, m.AbortRecovery())
	require.Equal(t, StateOpen, m.Load())
	require.False(t, m.EndReceive())
	require.True(t, m.EnterRecovery())
}

func TestStateCloseDuringRecovery(t *testing.T) {
	var m stateMachine
	m.TryOpen()
	m.EndReceive()
	m.EnterRecovery()
	wasOpen, recovering := m.Close()
	require.True(t, wasOpen)
	require.True(t, recovering)
	require.False(t, m.TakeClosed())
	require.False(t, m.FinishRecovery())
	// waits for the re-enabled reception to stop
	require.False(t, m.TakeClosed())
	require.True(t, m.EndReceive())
	require.True(t, m.TakeClosed())
	require.False(t, m.TakeClosed())
}

func TestStateCloseOnce(t *testing.T) {
	var m stateMachine
	m.TryOpen()
	m.BeginTransmit()
	wasOpen, recovering := m.Close()
	require.True(t, wasOpen)
	require.False(t, recovering)
	wasOpen, _ = m.Close()
	require.False(t, wasOpen)
	require.False(t, m.TakeClosed())
	m.EndTransmit()
	require.False(t, m.Load().IsFullyIdle())
	require.False(t, m.TakeClosed())
	require.True(t, m.EndReceive())
	require.True(t, m.Load().IsFullyIdle())
	require.True(t, m.TakeClosed())
	require.False(t, m.TakeClosed())

	opened, err := m.TryOpen()
	require.False(t, opened)
	require.Equal(t, ErrBusy, err)
	m.ClosedDelivered()
	require.Equal(t, State(0), m.Load())
	opened, err = m.TryOpen()
	require.NoError(t, err)
	require.True(t, opened)
}
