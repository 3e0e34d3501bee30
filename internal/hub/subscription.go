package hub

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned when subscribing to a closed hub.
	ErrClosed = errors.New("hub closed")
	// ErrUnknownTopic is returned for topics the hub does not serve.
	ErrUnknownTopic = errors.New("unknown topic")
)

// Subscription receives encoded envelopes for its topics on C. When the
// subscriber falls behind, the oldest pending envelopes are discarded.
type Subscription struct {
	id  uint64
	hub *Hub
	ch  chan []byte

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool

	dropped atomic.Uint64
}

func newSubscription(h *Hub, id uint64, size int) *Subscription {
	return &Subscription{
		id:     id,
		hub:    h,
		ch:     make(chan []byte, size),
		topics: make(map[string]struct{}),
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Subscribe adds topics and queues their current snapshots.
func (s *Subscription) Subscribe(topics ...string) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.hub.addTopicsLocked(s, topics)
}

// Unsubscribe removes topics. Unknown topics are ignored.
func (s *Subscription) Unsubscribe(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		delete(s.topics, t)
	}
}

// Topics returns the number of subscribed topics.
func (s *Subscription) Topics() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.topics)
}

// Dropped returns how many envelopes were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the hub and closes C.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.shutdown()
}

// add reports whether topic was newly added.
func (s *Subscription) add(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic]; ok {
		return false
	}
	s.topics[topic] = struct{}{}
	return true
}

func (s *Subscription) wants(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.topics[topic]
	return ok
}

// deliver queues data without blocking, evicting the oldest envelope when
// the buffer is full.
func (s *Subscription) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- data:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
