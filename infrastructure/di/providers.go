package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/infrastructure/config"
	"github.com/frenb/accelent/infrastructure/documents"
	"github.com/frenb/accelent/infrastructure/llm"
	"github.com/frenb/accelent/infrastructure/messaging/eventbridge"
	"github.com/frenb/accelent/infrastructure/observability"
	"go.uber.org/zap"
)

// ProvideLogger creates the process logger and its adjustable level
func ProvideLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	return observability.NewLogger(cfg.LogLevel, cfg.Environment)
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are
// disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("accelent")
}

// ProvideTracing installs the OTLP tracer provider when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	return observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "accelent",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	}, logger)
}

// ProvideTextGenerator selects the configured provider and guards it with
// a circuit breaker. It returns nil when no provider is configured.
func ProvideTextGenerator(cfg *config.Config, logger *zap.Logger) (ports.TextGenerator, error) {
	var gen ports.TextGenerator
	switch cfg.TextGenProvider {
	case config.ProviderNone, "":
		logger.Info("No text generator configured; prompts will fail and classification is local")
		return nil, nil
	case config.ProviderHTTP:
		gen = llm.NewHTTPGenerator(cfg.TextGenURL, cfg.TextGenTimeout)
	case config.ProviderOpenAI:
		gen = llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.TextGenURL)
	default:
		return nil, fmt.Errorf("unknown text generator provider %q", cfg.TextGenProvider)
	}
	logger.Info("Text generator configured", zap.String("provider", gen.Name()))
	return llm.NewBreakerGenerator(gen, llm.DefaultBreakerConfig(), logger.Named("breaker")), nil
}

// ProvideDocumentService creates the tabular-document client, or nil when
// no service URL is configured
func ProvideDocumentService(cfg *config.Config, logger *zap.Logger) ports.DocumentService {
	if cfg.DocumentsURL == "" {
		return nil
	}
	return documents.NewClient(cfg.DocumentsURL, documents.WithLogger(logger.Named("documents")))
}

// ProvideAWSConfig loads the default AWS configuration for the region
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideEventForwarder creates the forwarder that mirrors workspace events
// to EventBridge, or nil when no bus is configured
func ProvideEventForwarder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*eventbridge.Forwarder, error) {
	if cfg.EventBusName == "" {
		return nil, nil
	}
	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	publisher := eventbridge.NewPublisher(ProvideEventBridgeClient(awsCfg), cfg.EventBusName, logger)
	return eventbridge.NewForwarder(publisher, cfg.EventFlushInterval, logger), nil
}
