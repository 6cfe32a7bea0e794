package ports

import (
	"context"

	"github.com/frenb/accelent/domain/events"
)

// TextGenerator is the text-generation collaborator: one prompt in, one
// generated text out. No streaming.
type TextGenerator interface {
	// Generate returns the generated text for a prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider in logs and metrics
	Name() string
}

// Row is one record sent to the tabular-document collaborator
type Row map[string]interface{}

// DocumentService is the tabular-document collaborator
type DocumentService interface {
	// CreateDocument uploads rows and returns a shareable document URL
	CreateDocument(ctx context.Context, title string, rows []Row) (string, error)
}

// EventPublisher forwards domain events to an external sink
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics records runtime measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordClassification(source string, fallback bool)
	RecordExecution(kind string, status string, seconds float64)
	RecordStaleResult(kind string)
	RecordEvent(eventType string)
}

// NoopMetrics discards all measurements
type NoopMetrics struct{}

func (NoopMetrics) RecordClassification(string, bool)       {}
func (NoopMetrics) RecordExecution(string, string, float64) {}
func (NoopMetrics) RecordStaleResult(string)                {}
func (NoopMetrics) RecordEvent(string)                      {}
