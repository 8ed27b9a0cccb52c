package mqtt

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/uartpipe/pkg/framework"
	"github.com/robotalks/uartpipe/pkg/msgs"
	"github.com/robotalks/uartpipe/pkg/pipe"
	"github.com/robotalks/uartpipe/pkg/transport"
)

// Topic suffixes under the bridge ID.
const (
	TopicRx    = "rx"
	TopicTx    = "tx"
	TopicStats = "stats"
	TopicMeta  = "meta"
)

// Defaults
const (
	DefaultStatsInterval = 5 * time.Second
	DefaultTxQueueDepth  = 64
	DefaultReadSize      = 256
)

// StatsSource provides transport counters.
type StatsSource interface {
	Stats() transport.Stats
}

// Bridge forwards bytes between a pipe connection and MQTT topics:
// received bytes are published to <id>/rx, payloads on <id>/tx are
// transmitted, and counters are published to <id>/stats periodically.
type Bridge struct {
	Queue         *Queue
	ID            string
	Conn          *pipe.Conn
	Stats         StatsSource
	StatsInterval time.Duration
	Meta          *msgs.Meta
	TxQueueDepth  int
	ReadSize      int
}

// Topic returns the full topic name for suffix, relative to topic prefix.
func (b *Bridge) Topic(suffix string) string {
	return b.ID + "/" + suffix
}

// Run implements Runnable. It returns when ctx is done or the pipe closed.
func (b *Bridge) Run(ctx context.Context) error {
	depth := b.TxQueueDepth
	if depth <= 0 {
		depth = DefaultTxQueueDepth
	}
	txCh := make(chan []byte, depth)

	b.publishMeta(true)
	defer b.publishMeta(false)

	sub := b.Queue.Sub(b.Topic(TopicTx), func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		select {
		case txCh <- data:
		default:
			glog.Warningf("bridge %s: tx queue full, dropped %d bytes", b.ID, len(data))
		}
	})
	defer sub.Close()

	// rx and tx pumps stop each other, stats follow.
	return fx.NewRunnerWith(ctx).StopOnExit().
		Go(fx.NamedRun("rx", fx.RunFunc(b.pumpRx))).
		Go(fx.NamedRun("tx", fx.RunFunc(func(ctx context.Context) error {
			return b.pumpTx(ctx, txCh)
		}))).
		Go(fx.NamedRun("stats", fx.RunFunc(b.publishStats))).
		Wait()
}

func (b *Bridge) pumpRx(ctx context.Context) error {
	size := b.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	for {
		n, err := b.Conn.ReadContext(ctx, buf)
		if n > 0 {
			if pubErr := b.Queue.Pub(b.Topic(TopicRx), append([]byte(nil), buf[:n]...)); pubErr != nil {
				glog.Errorf("bridge %s: publish rx error: %v", b.ID, pubErr)
			}
		}
		if err == io.EOF {
			glog.V(2).Infof("bridge %s: pipe closed", b.ID)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (b *Bridge) pumpTx(ctx context.Context, txCh <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-txCh:
			if _, err := b.Conn.Write(data); err != nil {
				if err == io.ErrClosedPipe {
					return nil
				}
				return err
			}
		}
	}
}

func (b *Bridge) publishStats(ctx context.Context) error {
	if b.Stats == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := b.StatsInterval
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			data, err := msgs.Encode(msgs.StatsFrom(b.ID, b.Stats.Stats(), now))
			if err != nil {
				return err
			}
			if err := b.Queue.Pub(b.Topic(TopicStats), data); err != nil {
				glog.Errorf("bridge %s: publish stats error: %v", b.ID, err)
			}
		}
	}
}

func (b *Bridge) publishMeta(online bool) {
	meta := msgs.Meta{Id: b.ID}
	if b.Meta != nil {
		meta = *b.Meta
		meta.Id = b.ID
	}
	meta.Online = online
	data, err := msgs.Encode(&meta)
	if err != nil {
		glog.Errorf("bridge %s: encode meta error: %v", b.ID, err)
		return
	}
	if err := b.Queue.PubWith(b.Topic(TopicMeta), data, 1, true); err != nil {
		glog.Errorf("bridge %s: publish meta error: %v", b.ID, err)
	}
}
