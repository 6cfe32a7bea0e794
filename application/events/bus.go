package events

import (
	"context"
	"sync"

	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"go.uber.org/zap"
)

// HandlerFunc processes a domain event. Errors are logged, never returned
// to the command that raised the event.
type HandlerFunc func(ctx context.Context, event events.DomainEvent) error

// Filter selects the events a subscriber receives
type Filter func(event events.DomainEvent) bool

// ForTypes matches events of any of the given types
func ForTypes(eventTypes ...string) Filter {
	set := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	return func(event events.DomainEvent) bool {
		_, ok := set[event.GetEventType()]
		return ok
	}
}

// ForNodes matches node-scoped events touching any of the given nodes
func ForNodes(ids ...valueobjects.NodeID) Filter {
	set := make(map[valueobjects.NodeID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(event events.DomainEvent) bool {
		scoped, ok := event.(events.NodeScoped)
		if !ok {
			return false
		}
		for _, id := range scoped.NodeIDs() {
			if _, hit := set[id]; hit {
				return true
			}
		}
		return false
	}
}

type subscription struct {
	id      uint64
	name    string
	handler HandlerFunc
	filters []Filter
}

func (s subscription) matches(event events.DomainEvent) bool {
	for _, f := range s.filters {
		if !f(event) {
			return false
		}
	}
	return true
}

// Bus delivers domain events to subscribers in the order they were
// enqueued. Stores enqueue while holding their own lock and drain after
// releasing it, so a handler may call back into a store: the events raised
// by that nested command are appended to the queue and delivered by the
// drain already in progress.
type Bus struct {
	mu       sync.Mutex
	subs     []subscription
	nextID   uint64
	queue    []events.DomainEvent
	draining bool
	logger   *zap.Logger
}

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler. All filters must match for an event to be
// delivered. The returned function removes the subscription.
func (b *Bus) Subscribe(name string, handler HandlerFunc, filters ...Filter) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: handler, filters: filters})

	b.logger.Debug("Registered event subscriber", zap.String("subscriber", name))

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filtered := b.subs[:0:0]
	for _, s := range b.subs {
		if s.id != id {
			filtered = append(filtered, s)
		}
	}
	b.subs = filtered
}

// Enqueue appends events for delivery without running any handler
func (b *Bus) Enqueue(evts ...events.DomainEvent) {
	if len(evts) == 0 {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, evts...)
	b.mu.Unlock()
}

// Publish enqueues events and drains the queue
func (b *Bus) Publish(ctx context.Context, evts ...events.DomainEvent) {
	b.Enqueue(evts...)
	b.Drain(ctx)
}

// Drain delivers queued events until the queue is empty. If another drain
// is already running (on this or another goroutine) it returns immediately
// and that drain delivers the events.
func (b *Bus) Drain(ctx context.Context) {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.queue) > 0 {
		event := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]

		// Copy to avoid holding the lock during handler execution
		subs := make([]subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		b.deliver(ctx, event, subs)

		b.mu.Lock()
	}

	b.draining = false
	b.mu.Unlock()
}

func (b *Bus) deliver(ctx context.Context, event events.DomainEvent, subs []subscription) {
	for _, s := range subs {
		if !s.matches(event) {
			continue
		}
		if err := b.safeHandle(ctx, s, event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("subscriber", s.name),
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) safeHandle(ctx context.Context, s subscription, event events.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("subscriber", s.name),
				zap.String("eventType", event.GetEventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return s.handler(ctx, event)
}
