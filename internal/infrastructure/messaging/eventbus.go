// Package messaging implements the in-process event bus that connects the
// gamification engine to its notification subscribers.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ErrEventBusClosed is returned on publish or subscribe after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// InMemoryEventBusConfig configures the bus.
type InMemoryEventBusConfig struct {
	// AsyncMode delivers events on a worker pool. Synchronous delivery is
	// for tests, which need deterministic ordering.
	AsyncMode bool

	// WorkerPoolSize is the number of delivery workers in async mode.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// EnableMetrics turns on delivery counters.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// delivery is one event bound for one handler.
type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// InMemoryEventBus implements shared.EventBus in-process. Handler failures
// are logged and never propagate to publishers, so a broken notification
// subscriber can never fail an engine operation.
//
// In async mode a fixed worker pool drains a delivery queue; Publish blocks
// only when the queue is full. Close waits for queued deliveries to finish.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	byType      map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	closed      bool

	async   bool
	queue   chan delivery
	workers sync.WaitGroup

	logger  *slog.Logger
	metrics *EventBusMetrics
}

// NewInMemoryEventBus creates the bus and, in async mode, starts its workers.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		async:  config.AsyncMode,
		logger: config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}

	if bus.async {
		bus.queue = make(chan delivery, 256)
		for i := 0; i < config.WorkerPoolSize; i++ {
			bus.workers.Add(1)
			go bus.worker()
		}
	}

	return bus
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.byType[eventType] = append(b.byType[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish fans the event out to its handlers. Errors from handlers are
// logged, not returned: publishing is fire-and-forget for the caller.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	// The read lock is held through enqueueing so Close cannot shut the
	// queue under an in-flight publish.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrEventBusClosed
	}

	handlers := make([]shared.EventHandler, 0, len(b.byType[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.byType[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, handler := range handlers {
		if b.async {
			b.queue <- delivery{event: event, handler: handler}
		} else {
			b.deliver(delivery{event: event, handler: handler})
		}
	}

	return nil
}

// Close stops accepting events and waits for queued deliveries to drain.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.async {
		close(b.queue)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus counters, or nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

func (b *InMemoryEventBus) worker() {
	defer b.workers.Done()
	for d := range b.queue {
		b.deliver(d)
	}
}

func (b *InMemoryEventBus) deliver(d delivery) {
	start := time.Now()
	err := d.handler(d.event)
	duration := time.Since(start)

	if b.metrics != nil {
		b.metrics.RecordHandlerExecution(d.event.EventType(), duration, err == nil)
	}

	if err != nil {
		b.logger.Error("handler error",
			"event_type", d.event.EventType(),
			"duration", duration,
			"error", err,
		)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────────

// EventBusMetrics tracks publish and delivery counters.
type EventBusMetrics struct {
	mu sync.Mutex

	published map[shared.EventType]int64

	execs         int64
	successes     int64
	totalDuration time.Duration
}

// NewEventBusMetrics creates an empty counter set.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{published: make(map[shared.EventType]int64)}
}

// RecordPublish counts one published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordHandlerExecution counts one handler delivery.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.execs++
	m.totalDuration += duration
	if success {
		m.successes++
	}
}

// EventBusMetricsSnapshot is a point-in-time view of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}

// Snapshot copies the counters out under the lock.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var published int64
	for _, v := range m.published {
		published += v
	}

	snap := EventBusMetricsSnapshot{
		TotalPublished:     published,
		TotalHandlerExecs:  m.execs,
		HandlerSuccessRate: 1.0,
	}
	if m.execs > 0 {
		snap.HandlerSuccessRate = float64(m.successes) / float64(m.execs)
		snap.AverageHandlerDuration = m.totalDuration / time.Duration(m.execs)
	}
	return snap
}
