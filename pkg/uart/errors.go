package uart

import "errors"

var (
	// ErrBusy indicates the operation is already in progress.
	ErrBusy = errors.New("uart busy")
	// ErrInactive indicates there is nothing to stop or feed.
	ErrInactive = errors.New("uart operation not active")
	// ErrInvalidBuffer indicates an empty receive buffer.
	ErrInvalidBuffer = errors.New("invalid receive buffer")
)
