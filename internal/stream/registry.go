// Package stream implements the in-memory topic registry and fan-out
// broadcast engine (spec.md §4.2): publish/subscribe over named, bounded,
// non-persistent channels.
package stream

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const shardCount = 32

// shard owns a slice of the topic namespace behind its own mutex, so
// get-or-create and teardown on different topic names proceed fully in
// parallel while operations on the same name serialize (spec.md §4.2:
// "serialized per-name; different names proceed in parallel"). Generalized
// from ws/internal/multi/shard.go's shard-by-hash connection table, applied
// here to topic names instead of connection IDs.
type shard struct {
	mu     sync.Mutex
	topics map[string]*topic
}

// Observers are optional callbacks the registry invokes on its way through
// publish/subscribe, used to drive Prometheus collectors without this
// package importing the metrics package directly.
type Observers struct {
	TopicsActive      func(delta int)
	MessagePublished  func()
	MessageDelivered  func()
	MessageDropped    func()
	SubscriberJoined  func()
	SubscriberLeft    func()
}

// Registry is the process-wide topic registry.
type Registry struct {
	shards           [shardCount]*shard
	subscriberBuffer int
	obs              Observers
}

// NewRegistry builds an empty registry. subscriberBuffer is the default
// bounded capacity for each new subscriber's channel.
func NewRegistry(subscriberBuffer int, obs Observers) *Registry {
	r := &Registry{subscriberBuffer: subscriberBuffer, obs: obs}
	for i := range r.shards {
		r.shards[i] = &shard{topics: make(map[string]*topic)}
	}
	return r
}

func (r *Registry) shardFor(name string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return r.shards[h.Sum32()%shardCount]
}

// getOrCreate returns the active topic for name, creating one if absent.
// The lookup and creation are atomic with respect to teardown on the same
// name (spec.md §9 design note "Topic lifetime vs. publish races"). Subscribe
// does not use it: it also registers its subscriber under the shard lock.
func (r *Registry) getOrCreate(name string) *topic {
	s := r.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.topics[name]; ok {
		return t
	}
	t := newTopic(name)
	s.topics[name] = t
	if r.obs.TopicsActive != nil {
		r.obs.TopicsActive(1)
	}
	return t
}

// releaseIfEmpty evicts the topic from the registry if it has become
// teardown-eligible (spec.md §4.2 lifecycle table), called after a
// subscriber disconnects or a publish completes.
func (r *Registry) releaseIfEmpty(name string) {
	s := r.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[name]
	if !ok {
		return
	}
	if t.teardownEligible() {
		delete(s.topics, name)
		if r.obs.TopicsActive != nil {
			r.obs.TopicsActive(-1)
		}
	}
}

// Publish validates nothing itself (callers validate sizes); it acquires or
// creates the named topic, fans the payload out, and reports how many
// subscribers it was handed to. Publishing to a topic with zero subscribers
// succeeds and delivers to nobody (spec.md §4.2 "Publish path").
func (r *Registry) Publish(name string, payload []byte) int {
	if r.obs.MessagePublished != nil {
		r.obs.MessagePublished()
	}
	t := r.getOrCreate(name)
	delivered := t.publish(payload, r.obs.MessageDelivered, r.obs.MessageDropped)
	r.releaseIfEmpty(name)
	return delivered
}

// Subscription is a live handle on one subscriber of one topic.
type Subscription struct {
	registry *Registry
	name     string
	topic    *topic
	sub      *subscriber
}

// Subscribe registers a new receiver on the named topic. The lookup and the
// registration happen under the shard lock, so a concurrent teardown cannot
// evict the topic between them.
func (r *Registry) Subscribe(name string) *Subscription {
	s := r.shardFor(name)
	s.mu.Lock()
	t, ok := s.topics[name]
	if !ok {
		t = newTopic(name)
		s.topics[name] = t
		if r.obs.TopicsActive != nil {
			r.obs.TopicsActive(1)
		}
	}
	sub := t.addSubscriber(r.subscriberBuffer)
	s.mu.Unlock()
	if r.obs.SubscriberJoined != nil {
		r.obs.SubscriberJoined()
	}
	return &Subscription{registry: r, name: name, topic: t, sub: sub}
}

// Messages returns the channel this subscription receives payloads on.
func (sub *Subscription) Messages() <-chan []byte {
	return sub.sub.ch
}

// Dropped returns the number of messages evicted for this subscriber due to
// capacity pressure.
func (sub *Subscription) Dropped() uint64 {
	return atomic.LoadUint64(&sub.sub.dropped)
}

// Close removes the subscriber from its topic and evicts the topic from the
// registry if it is now empty. Safe to call more than once.
func (sub *Subscription) Close() {
	if sub.topic.removeSubscriber(sub.sub.id) && sub.registry.obs.SubscriberLeft != nil {
		sub.registry.obs.SubscriberLeft()
	}
	sub.registry.releaseIfEmpty(sub.name)
}
