package transport

import (
	"sync/atomic"

	"github.com/robotalks/uartpipe/pkg/uart"
)

// RxBuffer is a reference counted receive buffer owned by an Arena.
type RxBuffer struct {
	arena *Arena
	index int
	data  []byte
	refs  int32
}

// Bytes implements uart.Buffer.
func (b *RxBuffer) Bytes() []byte {
	return b.data
}

// Index is the slot of the buffer in its Arena.
func (b *RxBuffer) Index() int {
	return b.index
}

// Refs returns the current reference count.
func (b *RxBuffer) Refs() int {
	return int(atomic.LoadInt32(&b.refs))
}

// Retain adds a reference. The buffer must be allocated.
func (b *RxBuffer) Retain() {
	for {
		n := atomic.LoadInt32(&b.refs)
		if n <= 0 {
			panic("retain on free rx buffer")
		}
		if atomic.CompareAndSwapInt32(&b.refs, n, n+1) {
			return
		}
	}
}

// Release drops a reference. The call dropping the last one returns the
// buffer to the Arena and returns true.
func (b *RxBuffer) Release() bool {
	n := atomic.AddInt32(&b.refs, -1)
	if n < 0 {
		panic("rx buffer released too many times")
	}
	if n > 0 {
		return false
	}
	b.arena.put(b)
	return true
}

// Arena is a fixed pool of equally sized receive buffers carved out of a
// single allocation.
type Arena struct {
	buffers     []RxBuffer
	free        chan *RxBuffer
	size        int
	outstanding int32
}

// NewArena creates an Arena of count buffers of size bytes each.
func NewArena(count, size int) *Arena {
	a := &Arena{
		buffers: make([]RxBuffer, count),
		free:    make(chan *RxBuffer, count),
		size:    size,
	}
	backing := make([]byte, count*size)
	for i := range a.buffers {
		b := &a.buffers[i]
		b.arena, b.index = a, i
		b.data = backing[i*size : (i+1)*size : (i+1)*size]
		a.free <- b
	}
	return a
}

// Allocate takes a free buffer with one reference. It never blocks and
// returns ErrOutOfMemory when all buffers are in use.
func (a *Arena) Allocate() (*RxBuffer, error) {
	select {
	case b := <-a.free:
		atomic.StoreInt32(&b.refs, 1)
		atomic.AddInt32(&a.outstanding, 1)
		return b, nil
	default:
		return nil, ErrOutOfMemory
	}
}

// Own returns the RxBuffer if buf belongs to this Arena.
func (a *Arena) Own(buf uart.Buffer) (*RxBuffer, bool) {
	b, ok := buf.(*RxBuffer)
	if !ok || b == nil || b.arena != a {
		return nil, false
	}
	return b, true
}

// Outstanding is the number of allocated buffers.
func (a *Arena) Outstanding() int {
	return int(atomic.LoadInt32(&a.outstanding))
}

// Cap is the total number of buffers.
func (a *Arena) Cap() int {
	return len(a.buffers)
}

// BufferSize is the size of each buffer.
func (a *Arena) BufferSize() int {
	return a.size
}

func (a *Arena) put(b *RxBuffer) {
	atomic.AddInt32(&a.outstanding, -1)
	// never blocks, the channel holds all buffers.
	a.free <- b
}
