package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownCommand is returned by Dispatch for unregistered commands.
var ErrUnknownCommand = errors.New("unknown command")

// Event represents an incoming named command.
type Event struct {
	Command   string
	Payload   json.RawMessage
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(ctx context.Context, e Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Publisher broadcasts the current state of the given topics.
type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

// Record describes one completed dispatch.
type Record struct {
	Command   string
	Payload   json.RawMessage
	Timestamp time.Time
	Duration  time.Duration
	Topics    []string
	Err       error
}

// Observer is notified after every dispatch, successful or not.
type Observer interface {
	Observe(ctx context.Context, r Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Record)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, r Record) { f(ctx, r) }

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
	topics []string
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Publishes declares the topics a handler may affect. They are published,
// in order, after every successful run of the handler.
func Publishes(topics ...string) Option {
	return func(c *config) {
		c.topics = append(c.topics, topics...)
	}
}

type route struct {
	handler HandlerFunc
	topics  []string
}

// Dispatcher routes events to registered handlers. Dispatch is serialized:
// a handler and the publication of its topics finish before the next event
// is handled.
type Dispatcher struct {
	handlers  map[string]route
	logger    Logger
	publisher Publisher
	observers []Observer

	exec    sync.Mutex
	waiting atomic.Int64

	// OTEL metrics
	pending   metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger. A nil publisher
// disables publication.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, publisher Publisher) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers:  make(map[string]route),
		logger:    logger,
		publisher: publisher,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.pending, err = m.Int64ObservableGauge(
		"dispatcher.commands.pending",
		metric.WithDescription("Commands waiting for the dispatcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.pending, d.waiting.Load())
			return nil
		},
		d.pending,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Total commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.command.duration",
		metric.WithDescription("Command handling time including publication"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Observe adds an observer. Must be called before dispatching starts.
func (d *Dispatcher) Observe(o Observer) {
	d.observers = append(d.observers, o)
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = route{handler: handler, topics: cfg.topics}
}

// Dispatch routes an event to its registered handler and, on success,
// publishes the handler's declared topics. A failed handler publishes
// nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (any, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	r, ok := d.handlers[e.Command]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
		d.notify(ctx, Record{Command: e.Command, Payload: e.Payload, Timestamp: e.Timestamp, Err: err})
		return nil, err
	}

	start := time.Now()
	result, err := d.run(ctx, r, e)
	elapsed := time.Since(start)

	cmdAttr := metric.WithAttributes(attribute.String("command", e.Command))
	d.processed.Add(ctx, 1, cmdAttr)
	d.duration.Record(ctx, float64(elapsed.Microseconds())/1000, cmdAttr)
	if err != nil {
		d.failed.Add(ctx, 1, cmdAttr)
	}

	rec := Record{
		Command:   e.Command,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		Duration:  elapsed,
		Err:       err,
	}
	if err == nil {
		rec.Topics = r.topics
	}
	d.notify(ctx, rec)

	return result, err
}

// run executes one handler under the dispatch lock and publishes its topics
// on success.
func (d *Dispatcher) run(ctx context.Context, r route, e Event) (any, error) {
	d.waiting.Add(1)
	d.exec.Lock()
	defer d.exec.Unlock()
	d.waiting.Add(-1)

	result, err := r.handler(ctx, e)
	if err == nil && d.publisher != nil && len(r.topics) > 0 {
		d.publisher.Publish(ctx, r.topics...)
	}
	return result, err
}

func (d *Dispatcher) notify(ctx context.Context, r Record) {
	for _, o := range d.observers {
		o.Observe(ctx, r)
	}
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Topics returns the topics declared for command.
func (d *Dispatcher) Topics(command string) []string {
	return append([]string(nil), d.handlers[command].topics...)
}

// Commands returns the number of registered commands.
func (d *Dispatcher) Commands() int {
	return len(d.handlers)
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "payloadBytes", len(e.Payload))

		result, err := h(ctx, e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
