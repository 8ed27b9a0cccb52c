package framework

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkHandler is the body of a deferred Work.
type WorkHandler interface {
	HandleWork(context.Context)
}

// HandleWorkFunc is the func form of WorkHandler.
type HandleWorkFunc func(context.Context)

// HandleWork implements WorkHandler.
func (f HandleWorkFunc) HandleWork(ctx context.Context) {
	f(ctx)
}

// Work is a single unit of deferred work bound to a WorkQueue.
// A Work is either idle or pending; submitting a pending Work is a no-op,
// so redundant triggers coalesce into one run.
type Work struct {
	Handler WorkHandler

	queue   *WorkQueue
	pending int32
	next    *Work
}

// Submit schedules the Work on its queue. It never blocks and is safe to
// call from driver callbacks. It returns false if the Work was already
// pending.
func (w *Work) Submit() bool {
	if !atomic.CompareAndSwapInt32(&w.pending, 0, 1) {
		return false
	}
	w.queue.enqueue(w)
	return true
}

// Pending indicates the Work is scheduled but has not started yet.
func (w *Work) Pending() bool {
	return atomic.LoadInt32(&w.pending) != 0
}

// WorkQueue runs submitted Work one at a time on a cooperative worker.
type WorkQueue struct {
	head *Work
	tail *Work
	lock sync.Mutex

	wakeUpCh chan struct{}
}

// NewWorkQueue creates a WorkQueue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{wakeUpCh: make(chan struct{}, 1)}
}

// NewWork creates a Work bound to the queue.
func (q *WorkQueue) NewWork(h WorkHandler) *Work {
	return &Work{Handler: h, queue: q}
}

func (q *WorkQueue) enqueue(w *Work) {
	q.lock.Lock()
	if q.head == nil {
		q.head = w
	} else {
		q.tail.next = w
	}
	q.tail = w
	q.lock.Unlock()
	select {
	case q.wakeUpCh <- struct{}{}:
	default:
	}
}

// ProcessPending runs all Work queued at the time of the call and returns
// how many ran. The pending flag of a Work is cleared right before its
// handler runs, so a Submit from inside the handler queues another run.
func (q *WorkQueue) ProcessPending(ctx context.Context) int {
	q.lock.Lock()
	head := q.head
	q.head, q.tail = nil, nil
	q.lock.Unlock()

	var count int
	for head != nil {
		w := head
		head, w.next = w.next, nil
		atomic.StoreInt32(&w.pending, 0)
		if h := w.Handler; h != nil {
			h.HandleWork(ctx)
		}
		count++
	}
	return count
}

// Run implements Runnable.
func (q *WorkQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wakeUpCh:
			q.ProcessPending(ctx)
		}
	}
}
