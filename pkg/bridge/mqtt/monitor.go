package mqtt

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartpipe/pkg/msgs"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Record is an observed bridge message.
type Record struct {
	ID      string
	Kind    string
	Payload []byte
	// Message is the decoded message of stats and meta topics.
	Message msgs.SerializableMessage
	Err     error
}

// SplitTopic splits <id>/<kind> topics.
func SplitTopic(topic string) (id, kind string, ok bool) {
	pos := strings.LastIndex(topic, "/")
	if pos <= 0 || pos+1 >= len(topic) {
		return "", "", false
	}
	return topic[:pos], topic[pos+1:], true
}

// Watch subscribes to all bridge topics and reports each message to fn.
// The returned Subscriptions should be closed to stop watching.
func Watch(q *Queue, fn func(Record)) []*Subscription {
	handler := func(topic string, payload []byte) {
		id, kind, ok := SplitTopic(topic)
		if !ok {
			return
		}
		rec := Record{ID: id, Kind: kind, Payload: payload}
		switch kind {
		case TopicStats, TopicMeta:
			rec.Message, rec.Err = msgs.Decode(payload)
		}
		fn(rec)
	}
	var subs []*Subscription
	for _, kind := range []string{TopicRx, TopicTx, TopicStats, TopicMeta} {
		subs = append(subs, q.Sub("+/"+kind, handler))
	}
	return subs
}

// Discover collects retained meta messages of online bridges.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) (res []*msgs.Meta, err error) {
	resCh := make(chan *msgs.Meta, 1)
	sub := q.Sub("+/"+TopicMeta, func(topic string, payload []byte) {
		msg, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("discover %s: %v", topic, err)
			return
		}
		meta, ok := msg.(*msgs.Meta)
		if !ok || !meta.Online {
			return
		}
		select {
		case resCh <- meta:
		case <-time.After(time.Second):
		}
	})
	defer sub.Close()

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	timer := time.After(timeout)
	for {
		select {
		case meta := <-resCh:
			res = append(res, meta)
		case <-timer:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}
