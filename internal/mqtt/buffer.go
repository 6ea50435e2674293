package mqtt

import "github.com/charmbracelet/log"

// DefaultOutboxSize is the number of messages held while disconnected.
const DefaultOutboxSize = 64

// pendingMsg stores a serialized message for replay after reconnection.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable and replays them in
// publish order. Two rules keep it useful when it fills up:
//
//   - a retained message replaces any pending retained message on the same
//     topic, since the broker only keeps the last one;
//   - on overflow the oldest system event is dropped first. Reset events are
//     dropped, oldest first, only when nothing else is held.
//
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs     []pendingMsg
	capacity int
	overflow bool // set once a message has been dropped since the last drain
	logger   *log.Logger
}

func newOutbox(capacity int, logger *log.Logger) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{
		msgs:     make([]pendingMsg, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

func (o *outbox) push(msg pendingMsg) {
	if msg.retained {
		if i := o.indexRetained(msg.topic); i >= 0 {
			o.remove(i)
		}
	}
	if len(o.msgs) == o.capacity {
		o.evict()
	}
	o.msgs = append(o.msgs, msg)
}

// indexRetained returns the position of the pending retained message on
// topic, or -1. At most one is ever held per topic.
func (o *outbox) indexRetained(topic string) int {
	for i, m := range o.msgs {
		if m.retained && m.topic == topic {
			return i
		}
	}
	return -1
}

func (o *outbox) evict() {
	if !o.overflow {
		o.logger.Warn("mqtt outbox full, dropping oldest system events first", "capacity", o.capacity)
		o.overflow = true
	}
	victim := 0
	for i, m := range o.msgs {
		if m.topic != Topic {
			victim = i
			break
		}
	}
	o.remove(victim)
}

func (o *outbox) remove(i int) {
	copy(o.msgs[i:], o.msgs[i+1:])
	o.msgs = o.msgs[:len(o.msgs)-1]
}

// drain returns every held message, oldest first, and empties the outbox.
func (o *outbox) drain() []pendingMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]pendingMsg, 0, o.capacity)
	o.overflow = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
