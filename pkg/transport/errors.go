package transport

import "errors"

var (
	// ErrOutOfMemory indicates the receive buffers are exhausted.
	// It's temporary, retry later.
	ErrOutOfMemory = errors.New("out of receive buffers")
	// ErrPermissionDenied indicates the transport is not open.
	ErrPermissionDenied = errors.New("transport not open")
	// ErrQueueFull indicates the receive queue is full.
	ErrQueueFull = errors.New("receive queue full")
	// ErrHardwareRejected indicates the UART refused the request.
	ErrHardwareRejected = errors.New("rejected by uart")
	// ErrBusy indicates the previous session is still shutting down.
	ErrBusy = errors.New("transport busy")
	// ErrInvalidConfig indicates the configuration is not usable.
	ErrInvalidConfig = errors.New("invalid transport config")
)
