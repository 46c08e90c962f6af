package stream

import (
	"sync"
	"sync/atomic"
)

// subscriberID uniquely identifies a live subscriber within its topic.
type subscriberID uint64

// subscriber is one receiver endpoint of a topic's fan-out. Capacity is
// bounded; on overflow the oldest buffered message is dropped to make room
// for the newest (spec.md §4.2: "loses the oldest undelivered messages").
type subscriber struct {
	id      subscriberID
	ch      chan []byte
	dropped uint64 // atomic
}

func newSubscriber(id subscriberID, capacity int) *subscriber {
	return &subscriber{
		id: id,
		ch: make(chan []byte, capacity),
	}
}

// deliver attempts a non-blocking send, evicting the oldest buffered message
// first if the channel is full.
func (s *subscriber) deliver(payload []byte, onDelivered, onDropped func()) {
	select {
	case s.ch <- payload:
		if onDelivered != nil {
			onDelivered()
		}
		return
	default:
	}

	select {
	case <-s.ch:
		atomic.AddUint64(&s.dropped, 1)
		if onDropped != nil {
			onDropped()
		}
	default:
	}

	select {
	case s.ch <- payload:
		if onDelivered != nil {
			onDelivered()
		}
	default:
		// Lost a race with another deliver; count it and move on rather
		// than block the publisher.
		atomic.AddUint64(&s.dropped, 1)
		if onDropped != nil {
			onDropped()
		}
	}
}

// topic is a named broadcast channel with many independent subscribers.
// It exists (per the registry) iff subscriberCount > 0 or a publish is
// mid-flight (spec.md §4.2 topic lifecycle table).
type topic struct {
	name string

	mu          sync.Mutex
	subscribers map[subscriberID]*subscriber
	nextID      subscriberID

	subscriberCount int32 // atomic, mirrors len(subscribers)
	publishesInFlight int32 // atomic
}

func newTopic(name string) *topic {
	return &topic{
		name:        name,
		subscribers: make(map[subscriberID]*subscriber),
	}
}

// addSubscriber registers a new receiver and returns it.
func (t *topic) addSubscriber(capacity int) *subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	sub := newSubscriber(t.nextID, capacity)
	t.subscribers[sub.id] = sub
	atomic.AddInt32(&t.subscriberCount, 1)
	return sub
}

// removeSubscriber drops a subscriber from the fan-out set permanently; it
// never again receives a message, matching spec.md §4.1 invariant list. It
// reports whether the subscriber was still registered.
func (t *topic) removeSubscriber(id subscriberID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subscribers[id]; ok {
		delete(t.subscribers, id)
		atomic.AddInt32(&t.subscriberCount, -1)
		return true
	}
	return false
}

// publish fans the payload out to every currently registered subscriber.
// It never blocks on a slow or dead subscriber.
func (t *topic) publish(payload []byte, onDelivered, onDropped func()) int {
	atomic.AddInt32(&t.publishesInFlight, 1)
	defer atomic.AddInt32(&t.publishesInFlight, -1)

	t.mu.Lock()
	targets := make([]*subscriber, 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		targets = append(targets, sub)
	}
	t.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(payload, onDelivered, onDropped)
	}
	return len(targets)
}

// teardownEligible reports whether the topic currently has no subscribers
// and no publish in flight, making it safe to evict from the registry.
func (t *topic) teardownEligible() bool {
	return atomic.LoadInt32(&t.subscriberCount) == 0 && atomic.LoadInt32(&t.publishesInFlight) == 0
}
