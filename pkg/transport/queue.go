package transport

import "context"

// Descriptor refers to received bytes in an RxBuffer and holds one
// reference of it.
type Descriptor struct {
	Buf  *RxBuffer
	Data []byte
}

// rxQueue is the bounded FIFO of descriptors between the event handler
// and Receive.
type rxQueue struct {
	ch chan Descriptor
}

func newRxQueue(depth int) *rxQueue {
	return &rxQueue{ch: make(chan Descriptor, depth)}
}

// TryPush never blocks. On ErrQueueFull the caller still owns the
// reference held by d.
func (q *rxQueue) TryPush(d Descriptor) error {
	select {
	case q.ch <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop takes the oldest descriptor. Without wait it returns immediately,
// otherwise it waits until one is available or ctx is done.
func (q *rxQueue) Pop(ctx context.Context, wait bool) (Descriptor, bool) {
	if !wait {
		select {
		case d := <-q.ch:
			return d, true
		default:
			return Descriptor{}, false
		}
	}
	select {
	case d := <-q.ch:
		return d, true
	case <-ctx.Done():
		return Descriptor{}, false
	}
}

func (q *rxQueue) Len() int {
	return len(q.ch)
}

// Purge drops all queued descriptors and releases their references.
func (q *rxQueue) Purge() int {
	var count int
	for {
		d, ok := q.Pop(context.TODO(), false)
		if !ok {
			return count
		}
		d.Buf.Release()
		count++
	}
}
