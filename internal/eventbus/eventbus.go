// Package eventbus implements the in-process publish/subscribe
// substrate: a bounded FIFO queue fanning out to both typed and
// wildcard subscribers, with per-subscriber failure isolation.
package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/models"
)

// DefaultQueueCapacity is the default bounded-queue size.
const DefaultQueueCapacity = 10_000

// Handler receives one event. Handlers are invoked sequentially per
// subscriber in publish order; a handler that panics or returns is
// isolated from the rest of the dispatch pass by the caller.
type Handler func(event models.Event)

// Bus is a single-publisher, multiple-subscriber event bus with a
// bounded queue.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[models.EventType][]Handler
	wildcard    []Handler

	queue chan models.Event

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Bus with the given bounded queue capacity. A
// non-positive capacity is sanitized to DefaultQueueCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Bus{
		subscribers: make(map[models.EventType][]Handler),
		queue:       make(chan models.Event, capacity),
	}
}

// Subscribe registers handler for events of exactly eventType.
func (b *Bus) Subscribe(eventType models.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event published on the bus.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish enqueues event, blocking until queue space is available or
// ctx is done. If event.ID or event.Timestamp are zero-valued they are
// populated before enqueuing.
func (b *Bus) Publish(ctx context.Context, event models.Event) error {
	event = stampEvent(event)
	select {
	case b.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishNoWait enqueues event without blocking; if the queue is full
// the event is dropped and logged.
func (b *Bus) PublishNoWait(event models.Event) {
	event = stampEvent(event)
	select {
	case b.queue <- event:
	default:
		log.Warn().Str("type", string(event.Type)).Msg("event queue full, dropping event")
	}
}

func stampEvent(event models.Event) models.Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = nowUTC()
	}
	return event
}

// Start begins the dispatch loop. Safe to call once; calling Start
// again before Stop is a no-op.
func (b *Bus) Start() {
	if b.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.dispatchLoop(ctx)
	log.Info().Msg("event bus started")
}

// Stop cancels the dispatch loop and waits for it to drain, so any
// event already pulled off the queue finishes dispatching before Stop
// returns. Idempotent.
func (b *Bus) Stop() {
	if b.done == nil {
		return
	}
	b.cancel()
	<-b.done
	b.done = nil
	log.Info().Msg("event bus stopped")
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.queue:
			b.dispatch(event)
		}
	}
}

func (b *Bus) dispatch(event models.Event) {
	b.mu.RLock()
	typed := append([]Handler(nil), b.subscribers[event.Type]...)
	wildcard := append([]Handler(nil), b.wildcard...)
	b.mu.RUnlock()

	for _, handler := range typed {
		invokeSafely(event, handler)
	}
	for _, handler := range wildcard {
		invokeSafely(event, handler)
	}
}

func invokeSafely(event models.Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("type", string(event.Type)).Msg("event handler panicked")
		}
	}()
	handler(event)
}
