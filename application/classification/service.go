// Package classification infers what kind of content a tab holds.
//
// Classify never fails: a configured text generator is asked first and any
// failure degrades to a fixed default. Without a generator a local
// heuristic is used.
package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("accelent.classification")

// Source says how a classification was obtained
type Source string

const (
	SourceGenerator Source = "generator"
	SourceCache     Source = "cache"
	SourceHeuristic Source = "heuristic"
	SourceFallback  Source = "fallback"
)

// Result is a classification plus where it came from
type Result struct {
	Classification entities.Classification `json:"classification"`
	Source         Source                  `json:"source"`
}

// Classifier is implemented by Service; the debouncer depends on it
type Classifier interface {
	Classify(ctx context.Context, content string, hint entities.ContentKind) Result
}

// Service is the ClassificationService
type Service struct {
	generator ports.TextGenerator
	cache     *ttlcache.Cache[string, entities.Classification]
	metrics   ports.Metrics
	logger    *zap.Logger
}

// NewService creates a classification service. generator may be nil, in
// which case the local heuristic answers every request. A zero cacheTTL
// disables caching.
func NewService(generator ports.TextGenerator, cacheTTL time.Duration, metrics ports.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	s := &Service{
		generator: generator,
		metrics:   metrics,
		logger:    logger,
	}
	if cacheTTL > 0 {
		s.cache = ttlcache.New(
			ttlcache.WithTTL[string, entities.Classification](cacheTTL),
		)
		go s.cache.Start()
	}
	return s
}

// Close stops the cache's expiry loop
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Stop()
	}
}

// Classify infers the semantic kind of content
func (s *Service) Classify(ctx context.Context, content string, hint entities.ContentKind) Result {
	ctx, span := tracer.Start(ctx, "classification.Classify")
	defer span.End()

	result := s.classify(ctx, content, hint)

	span.SetAttributes(
		attribute.String("classification.kind", string(result.Classification.Kind)),
		attribute.String("classification.source", string(result.Source)),
		attribute.Int("classification.content_length", len(content)),
	)
	s.metrics.RecordClassification(string(result.Source), result.Source == SourceFallback)
	return result
}

func (s *Service) classify(ctx context.Context, content string, hint entities.ContentKind) Result {
	if s.generator == nil {
		return Result{Classification: Heuristic(content, hint), Source: SourceHeuristic}
	}

	key := entities.ContentFingerprint(content, string(hint))
	if s.cache != nil {
		if item := s.cache.Get(key); item != nil {
			return Result{Classification: item.Value(), Source: SourceCache}
		}
	}

	response, err := s.generator.Generate(ctx, buildClassificationPrompt(content, hint))
	if err != nil {
		s.logger.Warn("Classification request failed, using default",
			zap.String("provider", s.generator.Name()),
			zap.Error(err),
		)
		return Result{Classification: entities.DefaultClassification(), Source: SourceFallback}
	}

	cls, err := ParseResponse(response)
	if err != nil {
		s.logger.Warn("Classification response unusable, using default",
			zap.String("provider", s.generator.Name()),
			zap.Error(err),
		)
		return Result{Classification: entities.DefaultClassification(), Source: SourceFallback}
	}

	if s.cache != nil {
		s.cache.Set(key, cls, ttlcache.DefaultTTL)
	}
	return Result{Classification: cls, Source: SourceGenerator}
}

// buildClassificationPrompt creates the strict single-object prompt
func buildClassificationPrompt(content string, hint entities.ContentKind) string {
	hintLine := "No category hint was given."
	if hint != "" {
		hintLine = fmt.Sprintf("The user suggested the category %q; use it only if the content fits.", hint)
	}

	return fmt.Sprintf(`You classify the content of a text document used in a data pipeline.

%s

Content:
%s

Reply with exactly one JSON object and nothing else:
{"kind": "dataset|prompt|spreadsheet|display", "format": "json|csv|yaml|structured", "confidence": 0.0}

Rules:
1. "dataset" is raw data; set "format" to how the data is written
2. "prompt" is an instruction for a language model
3. "spreadsheet" is a request to produce a table
4. "display" is text meant only to be shown
5. Omit "format" unless kind is "dataset"
6. Confidence must be between 0.0 and 1.0
`, hintLine, content)
}

type classificationResponse struct {
	Kind       string   `json:"kind"`
	Format     string   `json:"format"`
	Confidence *float64 `json:"confidence"`
}

// ParseResponse parses a generator reply into a classification. Code fences
// around the JSON are stripped. Missing or invalid fields are errors.
func ParseResponse(response string) (entities.Classification, error) {
	response = StripCodeFences(response)

	var raw classificationResponse
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return entities.Classification{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if raw.Kind == "" {
		return entities.Classification{}, fmt.Errorf("response is missing kind")
	}
	if raw.Confidence == nil {
		return entities.Classification{}, fmt.Errorf("response is missing confidence")
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return entities.Classification{}, fmt.Errorf("confidence %v out of range", *raw.Confidence)
	}

	kind, err := entities.ParseContentKind(raw.Kind)
	if err != nil {
		return entities.Classification{}, err
	}

	cls := entities.Classification{Kind: kind, Confidence: *raw.Confidence}
	if kind == entities.ContentDataset {
		format, err := entities.ParseDataFormat(raw.Format)
		if err != nil {
			return entities.Classification{}, err
		}
		cls.Format = format
	}
	return cls, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag.
func StripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	response = strings.TrimPrefix(response, "```")
	if nl := strings.IndexByte(response, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(response[:nl]); !strings.ContainsAny(tag, "{[") {
			response = response[nl+1:]
		}
	} else {
		response = strings.TrimPrefix(response, "json")
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	return strings.TrimSpace(response)
}
