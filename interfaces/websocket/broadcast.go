package websocket

import (
	"context"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/events"
	"go.uber.org/zap"
)

// System message types. Domain events are sent under their own event type,
// e.g. "node.output_changed".
const (
	TypeConnectionEstablished = "connection.established"
	TypeSnapshot              = "graph.snapshot"
)

// Broadcaster forwards domain events from a workspace bus to the hub
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{hub: hub, logger: logger}
}

// Attach subscribes to every event on bus. The returned function detaches.
func (b *Broadcaster) Attach(bus *appevents.Bus) func() {
	return bus.Subscribe("websocket-broadcaster", b.handle)
}

func (b *Broadcaster) handle(_ context.Context, event events.DomainEvent) error {
	if err := b.hub.Broadcast(event.GetEventType(), event); err != nil {
		b.logger.Warn("Failed to broadcast event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
	return nil
}
