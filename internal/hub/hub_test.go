package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

// Verify interface compliance at compile time.
var (
	_ Source = (*store.Store)(nil)
	_ Sink   = (*RedisSink)(nil)
)

type recordingSink struct {
	mu     sync.Mutex
	topics []string
	closed bool
}

func (s *recordingSink) Send(topic string, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type failingSource struct{}

func (failingSource) Snapshot(string) (any, error) { return nil, errors.New("boom") }

func receive(t *testing.T, sub *Subscription) streaming.Envelope {
	t.Helper()
	select {
	case data, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		var env streaming.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return streaming.Envelope{}
	}
}

func assertNoEnvelope(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case data := <-sub.C():
		t.Fatalf("unexpected envelope %s", data)
	default:
	}
}

func decodeMissions(t *testing.T, env streaming.Envelope) []core.Mission {
	t.Helper()
	require.Equal(t, streaming.TopicMissions, env.Type)
	var missions []core.Mission
	require.NoError(t, json.Unmarshal(env.Payload, &missions))
	return missions
}

func TestHub_SubscribeSendsCurrentSnapshot(t *testing.T) {
	s := store.New()
	_, err := s.CreateMission("m1", "Rescue")
	require.NoError(t, err)
	h := New(s)

	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)
	defer sub.Close()

	missions := decodeMissions(t, receive(t, sub))
	require.Len(t, missions, 1)
	assert.Equal(t, "Rescue", missions[0].Name)
	assertNoEnvelope(t, sub)
}

func TestHub_PublishFullCollection(t *testing.T) {
	s := store.New()
	h := New(s)
	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, decodeMissions(t, receive(t, sub)))

	_, err = s.CreateMission("m1", "Rescue")
	require.NoError(t, err)
	_, err = s.CreateMission("m2", "Patrol")
	require.NoError(t, err)
	h.Publish(context.Background(), streaming.TopicMissions)

	missions := decodeMissions(t, receive(t, sub))
	require.Len(t, missions, 2)
	assert.Equal(t, "m1", missions[0].ID)
	assert.Equal(t, "m2", missions[1].ID)
}

func TestHub_OnlySubscribedTopics(t *testing.T) {
	s := store.New()
	h := New(s)
	sub, err := h.Subscribe(streaming.TopicSimulators)
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	h.Publish(context.Background(), streaming.TopicMissions, streaming.TopicSimulators)

	env := receive(t, sub)
	assert.Equal(t, streaming.TopicSimulators, env.Type)
	assertNoEnvelope(t, sub)
}

func TestHub_PublishOrder(t *testing.T) {
	h := New(store.New())
	sub, err := h.Subscribe(streaming.TopicMissions, streaming.TopicSimulators)
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)
	receive(t, sub)

	h.Publish(context.Background(), streaming.TopicMissions, streaming.TopicSimulators)

	assert.Equal(t, streaming.TopicMissions, receive(t, sub).Type)
	assert.Equal(t, streaming.TopicSimulators, receive(t, sub).Type)
}

func TestHub_UnknownTopic(t *testing.T) {
	h := New(store.New())

	_, err := h.Subscribe("soldiersUpdate")
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.Equal(t, 0, h.Subscribers())

	sub, err := h.Subscribe()
	require.NoError(t, err)
	assert.ErrorIs(t, sub.Subscribe(streaming.TopicMissions, "bogus"), ErrUnknownTopic)
	assert.Equal(t, 0, sub.Topics())
}

func TestHub_Unsubscribe(t *testing.T) {
	h := New(store.New())
	sub, err := h.Subscribe(streaming.TopicMissions, streaming.TopicStationSets)
	require.NoError(t, err)
	receive(t, sub)
	receive(t, sub)

	sub.Unsubscribe(streaming.TopicMissions)
	h.Publish(context.Background(), streaming.TopicMissions)
	assertNoEnvelope(t, sub)

	h.Publish(context.Background(), streaming.TopicStationSets)
	assert.Equal(t, streaming.TopicStationSets, receive(t, sub).Type)
}

func TestHub_ResubscribeDoesNotDuplicate(t *testing.T) {
	h := New(store.New())
	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)
	receive(t, sub)

	require.NoError(t, sub.Subscribe(streaming.TopicMissions))
	assertNoEnvelope(t, sub)
	assert.Equal(t, 1, sub.Topics())
}

func TestHub_SlowSubscriberKeepsLatest(t *testing.T) {
	s := store.New()
	h := New(s, WithBufferSize(2))
	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.CreateMission("", "Mission")
		require.NoError(t, err)
		h.Publish(context.Background(), streaming.TopicMissions)
	}

	var last streaming.Envelope
	for i := 0; i < 2; i++ {
		last = receive(t, sub)
	}
	assertNoEnvelope(t, sub)
	assert.Len(t, decodeMissions(t, last), 5)
	assert.Equal(t, uint64(4), sub.Dropped())
}

func TestHub_Current(t *testing.T) {
	s := store.New()
	h := New(s)

	data, err := h.Current(streaming.TopicFlights)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"flightsUpdate","payload":[]}`, string(data))

	_, err = s.CreateMission("m1", "Rescue")
	require.NoError(t, err)
	h.Publish(context.Background(), streaming.TopicMissions)

	data, err = h.Current(streaming.TopicMissions)
	require.NoError(t, err)
	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Len(t, decodeMissions(t, env), 1)
}

func TestHub_SourceErrorSkipsTopic(t *testing.T) {
	sink := &recordingSink{}
	h := New(failingSource{}, WithSink(sink))

	h.Publish(context.Background(), streaming.TopicMissions)

	assert.Empty(t, sink.topics)
	_, err := h.Current(streaming.TopicMissions)
	assert.Error(t, err)
}

func TestHub_SinkReceivesPublications(t *testing.T) {
	sink := &recordingSink{}
	h := New(store.New(), WithSink(sink))

	h.Publish(context.Background(), streaming.TopicMissions, streaming.TopicSimulators)

	sink.mu.Lock()
	assert.Equal(t, []string{streaming.TopicMissions, streaming.TopicSimulators}, sink.topics)
	sink.mu.Unlock()

	require.NoError(t, h.Close())
	assert.True(t, sink.closed)
}

func TestHub_Close(t *testing.T) {
	h := New(store.New())
	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)
	receive(t, sub)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Close()

	_, err = h.Subscribe(streaming.TopicMissions)
	assert.ErrorIs(t, err, ErrClosed)
	h.Publish(context.Background(), streaming.TopicMissions)
}

func TestHub_SubscriptionClose(t *testing.T) {
	h := New(store.New())
	sub, err := h.Subscribe(streaming.TopicMissions)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers())

	h.Publish(context.Background(), streaming.TopicMissions)
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	s := store.New()
	h := New(s)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Publish(context.Background(), streaming.Topics...)
		}()
		go func() {
			defer wg.Done()
			sub, err := h.Subscribe(streaming.Topics...)
			if err == nil {
				sub.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Subscribers())
}

func TestRedisSink_Naming(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	sink := NewRedisSink(client, "thorium:", nil)

	assert.Equal(t, "thorium:missionsUpdate", sink.Channel(streaming.TopicMissions))
	assert.Equal(t, "thorium:snapshot:missionsUpdate", sink.Key(streaming.TopicMissions))

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	sink.Send(streaming.TopicMissions, []byte(`{}`))
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "://nope"})
	assert.Error(t, err)
}
