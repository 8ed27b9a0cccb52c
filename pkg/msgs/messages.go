package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/uartpipe/pkg/transport"
)

// TypeIDs
const (
	StatsTypeID uint32 = GroupTransport | TypeIDKindEvent | 0x0001
	MetaTypeID  uint32 = GroupTransport | TypeIDKindEvent | 0x0002
)

// Stats is the event reporting transport counters.
type Stats struct {
	Id                 string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Open               bool   `protobuf:"varint,2,opt,name=open,proto3" json:"open,omitempty"`
	Transmitting       bool   `protobuf:"varint,3,opt,name=transmitting,proto3" json:"transmitting,omitempty"`
	Recovering         bool   `protobuf:"varint,4,opt,name=recovering,proto3" json:"recovering,omitempty"`
	RxBytes            uint64 `protobuf:"varint,5,opt,name=rx_bytes,proto3" json:"rx_bytes,omitempty"`
	RxDropped          uint64 `protobuf:"varint,6,opt,name=rx_dropped,proto3" json:"rx_dropped,omitempty"`
	RxDroppedBytes     uint64 `protobuf:"varint,7,opt,name=rx_dropped_bytes,proto3" json:"rx_dropped_bytes,omitempty"`
	RxAllocFailures    uint64 `protobuf:"varint,8,opt,name=rx_alloc_failures,proto3" json:"rx_alloc_failures,omitempty"`
	RxRecoveries       uint64 `protobuf:"varint,9,opt,name=rx_recoveries,proto3" json:"rx_recoveries,omitempty"`
	RxStops            uint64 `protobuf:"varint,10,opt,name=rx_stops,proto3" json:"rx_stops,omitempty"`
	TxBytes            uint64 `protobuf:"varint,11,opt,name=tx_bytes,proto3" json:"tx_bytes,omitempty"`
	TxAborts           uint64 `protobuf:"varint,12,opt,name=tx_aborts,proto3" json:"tx_aborts,omitempty"`
	TxRejected         uint64 `protobuf:"varint,13,opt,name=tx_rejected,proto3" json:"tx_rejected,omitempty"`
	BuffersOutstanding uint32 `protobuf:"varint,14,opt,name=buffers_outstanding,proto3" json:"buffers_outstanding,omitempty"`
	BuffersTotal       uint32 `protobuf:"varint,15,opt,name=buffers_total,proto3" json:"buffers_total,omitempty"`
	RxQueued           uint32 `protobuf:"varint,16,opt,name=rx_queued,proto3" json:"rx_queued,omitempty"`
	Timestamp          int64  `protobuf:"varint,17,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// StatsFrom creates a Stats message from a transport snapshot.
func StatsFrom(id string, s transport.Stats, ts time.Time) *Stats {
	return &Stats{
		Id:                 id,
		Open:               s.State.IsOpen(),
		Transmitting:       s.State.IsTransmitting(),
		Recovering:         s.State.IsRecovering(),
		RxBytes:            s.RxBytes,
		RxDropped:          s.RxDropped,
		RxDroppedBytes:     s.RxDroppedBytes,
		RxAllocFailures:    s.RxAllocFailures,
		RxRecoveries:       s.RxRecoveries,
		RxStops:            s.RxStops,
		TxBytes:            s.TxBytes,
		TxAborts:           s.TxAborts,
		TxRejected:         s.TxRejected,
		BuffersOutstanding: uint32(s.BuffersOutstanding),
		BuffersTotal:       uint32(s.BuffersTotal),
		RxQueued:           uint32(s.RxQueued),
		Timestamp:          ts.UnixNano(),
	}
}

// Time returns Timestamp as time.Time.
func (m *Stats) Time() time.Time { return time.Unix(0, m.Timestamp) }

// NewMessage implements SerializableMessage.
func (m *Stats) NewMessage() SerializableMessage { return &Stats{} }

// TypeID implements SerializableMessage.
func (m *Stats) TypeID() uint32 { return StatsTypeID }

// ProtoMessage implements proto.Message.
func (m *Stats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Stats) Reset() { *m = Stats{} }

// String implements proto.Message.
func (m *Stats) String() string { return proto.CompactTextString(m) }

// Meta describes a bridged transport, published retained.
type Meta struct {
	Id            string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Port          string `protobuf:"bytes,2,opt,name=port,proto3" json:"port,omitempty"`
	BaudRate      uint32 `protobuf:"varint,3,opt,name=baud_rate,proto3" json:"baud_rate,omitempty"`
	RxBufferSize  uint32 `protobuf:"varint,4,opt,name=rx_buffer_size,proto3" json:"rx_buffer_size,omitempty"`
	RxBufferCount uint32 `protobuf:"varint,5,opt,name=rx_buffer_count,proto3" json:"rx_buffer_count,omitempty"`
	TxBufferSize  uint32 `protobuf:"varint,6,opt,name=tx_buffer_size,proto3" json:"tx_buffer_size,omitempty"`
	Online        bool   `protobuf:"varint,7,opt,name=online,proto3" json:"online,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *Meta) NewMessage() SerializableMessage { return &Meta{} }

// TypeID implements SerializableMessage.
func (m *Meta) TypeID() uint32 { return MetaTypeID }

// ProtoMessage implements proto.Message.
func (m *Meta) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Meta) Reset() { *m = Meta{} }

// String implements proto.Message.
func (m *Meta) String() string { return proto.CompactTextString(m) }
