package transport

import "sync/atomic"

// Stats is a snapshot of transport counters.
type Stats struct {
	State              State
	RxBytes            uint64
	RxDropped          uint64
	RxDroppedBytes     uint64
	RxAllocFailures    uint64
	RxRecoveries       uint64
	RxStops            uint64
	TxBytes            uint64
	TxAborts           uint64
	TxRejected         uint64
	BuffersOutstanding int
	BuffersTotal       int
	RxQueued           int
}

type counters struct {
	rxBytes         uint64
	rxDropped       uint64
	rxDroppedBytes  uint64
	rxAllocFailures uint64
	rxRecoveries    uint64
	rxStops         uint64
	txBytes         uint64
	txAborts        uint64
	txRejected      uint64
}

func (c *counters) add(v *uint64, n int) {
	atomic.AddUint64(v, uint64(n))
}

func (c *counters) snapshot(s *Stats) {
	s.RxBytes = atomic.LoadUint64(&c.rxBytes)
	s.RxDropped = atomic.LoadUint64(&c.rxDropped)
	s.RxDroppedBytes = atomic.LoadUint64(&c.rxDroppedBytes)
	s.RxAllocFailures = atomic.LoadUint64(&c.rxAllocFailures)
	s.RxRecoveries = atomic.LoadUint64(&c.rxRecoveries)
	s.RxStops = atomic.LoadUint64(&c.rxStops)
	s.TxBytes = atomic.LoadUint64(&c.txBytes)
	s.TxAborts = atomic.LoadUint64(&c.txAborts)
	s.TxRejected = atomic.LoadUint64(&c.txRejected)
}
