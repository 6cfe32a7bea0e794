// Package di assembles the process: configuration, observability,
// providers and the workspace.
package di

import (
	"context"

	"github.com/frenb/accelent/application/classification"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/application/runtime"
	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/infrastructure/config"
	"github.com/frenb/accelent/infrastructure/messaging/eventbridge"
	"github.com/frenb/accelent/infrastructure/observability"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Metrics    *observability.Collector
	Tracing    *observability.TracerProvider
	Generator  ports.TextGenerator
	Documents  ports.DocumentService
	Classifier *classification.Service
	Workspace  *workspace.Workspace
	Forwarder  *eventbridge.Forwarder

	detachForwarder func()
}

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, level, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger, LogLevel: level}

	c.Metrics = ProvideMetrics(cfg)
	var metrics ports.Metrics = ports.NoopMetrics{}
	if c.Metrics != nil {
		metrics = c.Metrics
	}

	if c.Tracing, err = ProvideTracing(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if c.Generator, err = ProvideTextGenerator(cfg, logger.Named("textgen")); err != nil {
		return nil, err
	}
	c.Documents = ProvideDocumentService(cfg, logger)

	c.Classifier = classification.NewService(c.Generator, cfg.ClassifyCacheTTL, metrics, logger.Named("classification"))
	c.Workspace = workspace.New(workspace.Options{
		Domain:     cfg.DomainConfig(),
		Classifier: c.Classifier,
		Runtime: runtime.Config{
			Generator: c.Generator,
			Documents: c.Documents,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	if c.Forwarder, err = ProvideEventForwarder(ctx, cfg, logger.Named("eventbridge")); err != nil {
		c.Workspace.Close()
		return nil, err
	}
	if c.Forwarder != nil {
		c.detachForwarder = c.Forwarder.Attach(c.Workspace.Bus())
	}
	return c, nil
}

// Close releases the workspace and flushes telemetry
func (c *Container) Close(ctx context.Context) {
	if c.detachForwarder != nil {
		c.detachForwarder()
	}
	c.Workspace.Close()
	if c.Tracing != nil {
		if err := c.Tracing.Shutdown(ctx); err != nil {
			c.Logger.Warn("Failed to shut down tracing", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
