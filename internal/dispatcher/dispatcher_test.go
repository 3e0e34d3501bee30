package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

// testPublisher records every publication
type testPublisher struct {
	mu        sync.Mutex
	published [][]string
}

func (p *testPublisher) Publish(_ context.Context, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, append([]string(nil), topics...))
}

func (p *testPublisher) calls() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger, *testPublisher) {
	logger := &testLogger{}
	pub := &testPublisher{}

	d, err := New(logger, pub)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger, pub
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	var got Event
	d.Register("createMission", func(_ context.Context, e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(context.Background(), Event{Command: "createMission", Payload: json.RawMessage(`{"name":"x"}`)})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
	if string(got.Payload) != `{"name":"x"}` {
		t.Errorf("unexpected payload %s", got.Payload)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Event{Command: "bogus"})

	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
	if len(pub.calls()) != 0 {
		t.Error("unknown command must not publish")
	}
}

func TestDispatcher_PanickingHandlerReleasesLock(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	d.Register("explode", func(context.Context, Event) (any, error) {
		panic("boom")
	}, Publishes("missionsUpdate"))
	d.Register("createMission", func(context.Context, Event) (any, error) {
		return "ok", nil
	})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_, _ = d.Dispatch(context.Background(), Event{Command: "explode"})
	}()

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), Event{Command: "createMission"})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher stayed locked after a handler panic")
	}
	if len(pub.calls()) != 0 {
		t.Error("panicking handler must not publish")
	}
}

func TestDispatcher_PublishesDeclaredTopics(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	d.Register("addTimelineStep", func(context.Context, Event) (any, error) {
		return nil, nil
	}, Publishes("missionsUpdate", "simulatorsUpdate"))

	if _, err := d.Dispatch(context.Background(), Event{Command: "addTimelineStep"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := pub.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(calls))
	}
	if strings.Join(calls[0], ",") != "missionsUpdate,simulatorsUpdate" {
		t.Errorf("unexpected topics %v", calls[0])
	}
}

func TestDispatcher_FailedHandlerDoesNotPublish(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	d.Register("renameSimulator", func(context.Context, Event) (any, error) {
		return nil, errors.New("not found")
	}, Publishes("simulatorsUpdate"))
	d.Register("removeSimulator", func(context.Context, Event) (any, error) {
		return nil, nil
	}, Publishes("simulatorsUpdate"))

	if _, err := d.Dispatch(context.Background(), Event{Command: "renameSimulator"}); err == nil {
		t.Error("expected handler error")
	}
	if len(pub.calls()) != 0 {
		t.Errorf("expected no publication, got %v", pub.calls())
	}

	// A failure does not block later commands.
	if _, err := d.Dispatch(context.Background(), Event{Command: "removeSimulator"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(pub.calls()) != 1 {
		t.Errorf("expected 1 publication, got %d", len(pub.calls()))
	}
}

func TestDispatcher_NilPublisher(t *testing.T) {
	d, err := New(&testLogger{}, nil)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	d.Register("createMission", func(context.Context, Event) (any, error) {
		return "ok", nil
	}, Publishes("missionsUpdate"))

	if _, err := d.Dispatch(context.Background(), Event{Command: "createMission"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_Serialized(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	var active, maxActive atomic.Int32
	d.Register("slow", func(context.Context, Event) (any, error) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), Event{Command: "slow"})
		}()
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Errorf("expected handlers to run one at a time, saw %d concurrently", maxActive.Load())
	}
}

func TestDispatcher_Observers(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var records []Record
	d.Observe(ObserverFunc(func(_ context.Context, r Record) {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, r)
	}))

	d.Register("ok", func(context.Context, Event) (any, error) { return nil, nil }, Publishes("missionsUpdate"))
	d.Register("fail", func(context.Context, Event) (any, error) { return nil, errors.New("boom") }, Publishes("missionsUpdate"))

	d.Dispatch(context.Background(), Event{Command: "ok", Payload: json.RawMessage(`{}`)})
	d.Dispatch(context.Background(), Event{Command: "fail"})
	d.Dispatch(context.Background(), Event{Command: "missing"})

	mu.Lock()
	defer mu.Unlock()

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Err != nil || len(records[0].Topics) != 1 || string(records[0].Payload) != `{}` {
		t.Errorf("unexpected success record %+v", records[0])
	}
	if records[1].Err == nil || records[1].Topics != nil {
		t.Errorf("unexpected failure record %+v", records[1])
	}
	if !errors.Is(records[2].Err, ErrUnknownCommand) {
		t.Errorf("expected unknown command record, got %+v", records[2])
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger, _ := newTestDispatcher(t)

	d.Register("logged", func(context.Context, Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(context.Background(), Event{Command: "logged", Payload: json.RawMessage(`{"a":1}`)})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger, _ := newTestDispatcher(t)

	d.Register("error", func(context.Context, Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(context.Background(), Event{Command: "error"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	d.Register("exists", func(context.Context, Event) (any, error) { return nil, nil }, Publishes("a", "b"))

	if !d.HasHandler("exists") {
		t.Error("expected handler to exist")
	}
	if d.HasHandler("not_exists") {
		t.Error("expected handler to not exist")
	}
	if d.Commands() != 1 {
		t.Errorf("expected 1 command, got %d", d.Commands())
	}
	if strings.Join(d.Topics("exists"), ",") != "a,b" {
		t.Errorf("unexpected topics %v", d.Topics("exists"))
	}
	if len(d.Topics("not_exists")) != 0 {
		t.Error("expected no topics for unknown command")
	}
}
