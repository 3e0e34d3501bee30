package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

const defaultBufferSize = 16

// Source produces the full current collection for a topic.
type Source interface {
	Snapshot(topic string) (any, error)
}

// Sink receives every encoded envelope the hub publishes, after local
// subscribers have been served.
type Sink interface {
	Send(topic string, data []byte)
	Close() error
}

// Hub fans full-collection snapshots out to topic subscribers. Every
// publication carries the complete collection, never a diff, so a
// subscriber that falls behind only needs the latest envelope per topic.
type Hub struct {
	source     Source
	logger     *slog.Logger
	bufferSize int
	sinks      []Sink

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	current map[string][]byte
	closed  bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithBufferSize sets how many envelopes a subscriber may have pending.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithSink mirrors publications to s.
func WithSink(s Sink) Option {
	return func(h *Hub) {
		h.sinks = append(h.sinks, s)
	}
}

// New creates a hub reading snapshots from source.
func New(source Source, opts ...Option) *Hub {
	h := &Hub{
		source:     source,
		logger:     slog.Default(),
		bufferSize: defaultBufferSize,
		subs:       make(map[uint64]*Subscription),
		current:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// encode builds the JSON envelope carrying topic's current snapshot.
func (h *Hub) encode(topic string) ([]byte, error) {
	snap, err := h.source.Snapshot(topic)
	if err != nil {
		return nil, err
	}
	env, err := streaming.NewEnvelope(topic, snap)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", topic, err)
	}
	return data, nil
}

// Publish snapshots each topic once and delivers it to every subscriber of
// that topic. Topics are published in the given order.
func (h *Hub) Publish(ctx context.Context, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, topic := range topics {
		data, err := h.encode(topic)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to encode snapshot", "topic", topic, "error", err)
			continue
		}
		h.current[topic] = data

		delivered := 0
		for _, sub := range h.subs {
			if sub.wants(topic) {
				sub.deliver(data)
				delivered++
			}
		}
		for _, sink := range h.sinks {
			sink.Send(topic, data)
		}
		h.logger.DebugContext(ctx, "Published snapshot", "topic", topic, "bytes", len(data), "subscribers", delivered)
	}
}

// Current returns the last envelope published on topic, encoding a fresh
// one when nothing has been published yet.
func (h *Hub) Current(topic string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentLocked(topic)
}

func (h *Hub) currentLocked(topic string) ([]byte, error) {
	if data, ok := h.current[topic]; ok {
		return data, nil
	}
	data, err := h.encode(topic)
	if err != nil {
		return nil, err
	}
	h.current[topic] = data
	return data, nil
}

// Subscribe registers a new subscription to topics. The current snapshot of
// each topic is queued immediately.
func (h *Hub) Subscribe(topics ...string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	h.nextID++
	sub := newSubscription(h, h.nextID, h.bufferSize)
	h.subs[sub.id] = sub

	if err := h.addTopicsLocked(sub, topics); err != nil {
		delete(h.subs, sub.id)
		return nil, err
	}
	return sub, nil
}

func (h *Hub) addTopicsLocked(sub *Subscription, topics []string) error {
	for _, topic := range topics {
		if !streaming.KnownTopic(topic) {
			return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
		}
	}
	for _, topic := range topics {
		if !sub.add(topic) {
			continue
		}
		data, err := h.currentLocked(topic)
		if err != nil {
			return err
		}
		sub.deliver(data)
	}
	return nil
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and closes the sinks.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}

	var firstErr error
	for _, sink := range h.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
