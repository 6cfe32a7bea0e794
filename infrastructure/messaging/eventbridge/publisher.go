// Package eventbridge forwards workspace domain events to an AWS
// EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"
	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/events"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every entry
const Source = "accelent.workspace"

// EventBridge limits PutEvents to 10 entries
const batchSize = 10

// PutEventsAPI is the part of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher sends domain events to EventBridge
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
	newBackOff   func() backoff.BackOff
}

// NewPublisher creates a publisher for the named bus
func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishWithRetry(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

type envelope struct {
	Type        string             `json:"type"`
	AggregateID string             `json:"aggregateId"`
	Timestamp   time.Time          `json:"timestamp"`
	Data        events.DomainEvent `json:"data"`
}

func (p *Publisher) publishWithRetry(ctx context.Context, batch []events.DomainEvent) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.publishBatch(ctx, batch)
		if err != nil && !isRetryableError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(3),
	)
	return err
}

func (p *Publisher) publishBatch(ctx context.Context, batch []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	sent := make([]events.DomainEvent, 0, len(batch))

	for _, event := range batch {
		detail, err := json.Marshal(envelope{
			Type:        event.GetEventType(),
			AggregateID: event.GetAggregateID(),
			Timestamp:   event.GetTimestamp(),
			Data:        event,
		})
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
		sent = append(sent, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(sent) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", sent[i].GetEventType()),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

// isRetryableError reports whether EventBridge rejected the call for a
// transient reason
func isRetryableError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "InternalException", "ServiceUnavailableException":
		return true
	}
	return apiErr.ErrorFault() == smithy.FaultServer
}

// Forwarder buffers events from the workspace bus and publishes them in
// the background so that store commands never wait on the network
type Forwarder struct {
	publisher ports.EventPublisher
	interval  time.Duration
	logger    *zap.Logger

	queue chan events.DomainEvent
	done  chan struct{}
	once  sync.Once
}

// NewForwarder creates a forwarder flushing at least every interval
func NewForwarder(publisher ports.EventPublisher, interval time.Duration, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Forwarder{
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		queue:     make(chan events.DomainEvent, 1024),
		done:      make(chan struct{}),
	}
}

// Attach subscribes the forwarder to every event on bus
func (f *Forwarder) Attach(bus *appevents.Bus) func() {
	return bus.Subscribe("eventbridge-forwarder", func(_ context.Context, e events.DomainEvent) error {
		select {
		case f.queue <- e:
		default:
			f.logger.Warn("Event forwarder buffer full, dropping event",
				zap.String("eventType", e.GetEventType()),
			)
		}
		return nil
	})
}

// Run publishes buffered events until ctx is cancelled, then flushes what
// is left
func (f *Forwarder) Run(ctx context.Context) error {
	defer f.once.Do(func() { close(f.done) })

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	batch := make([]events.DomainEvent, 0, batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := f.publisher.PublishBatch(ctx, batch); err != nil {
			f.logger.Error("Failed to forward events", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for drained := false; !drained; {
				select {
				case e := <-f.queue:
					batch = append(batch, e)
					if len(batch) == batchSize {
						flush(drainCtx)
					}
				default:
					drained = true
				}
			}
			flush(drainCtx)
			return nil
		case e := <-f.queue:
			batch = append(batch, e)
			if len(batch) == batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Done is closed when Run has returned
func (f *Forwarder) Done() <-chan struct{} {
	return f.done
}
