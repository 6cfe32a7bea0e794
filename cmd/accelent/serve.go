package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frenb/accelent/infrastructure/config"
	"github.com/frenb/accelent/infrastructure/di"
	"github.com/frenb/accelent/infrastructure/observability"
	"github.com/frenb/accelent/interfaces/http/rest"
	"github.com/frenb/accelent/interfaces/http/rest/handlers"
	"github.com/frenb/accelent/interfaces/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddress string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "addr", "", "listen address (overrides SERVER_ADDRESS)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveAddress != "" {
		cfg.ServerAddress = serveAddress
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	logger := container.Logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		container.Close(closeCtx)
	}()

	var onCount func(int)
	if container.Metrics != nil {
		onCount = container.Metrics.SetWebSocketClients
	}
	hub := websocket.NewHub(logger.Named("websocket"), onCount)
	detach := websocket.NewBroadcaster(hub, logger).Attach(container.Workspace.Bus())
	defer detach()

	wsCfg := websocket.DefaultServerConfig()
	wsCfg.Snapshot = func() interface{} {
		return handlers.NewGraphResponse(container.Workspace.Graph.Snapshot())
	}
	if cfg.IsDevelopment() {
		wsCfg.CheckOrigin = func(*http.Request) bool { return true }
	}

	routerOpts := rest.Options{
		Workspace: container.Workspace,
		WebSocket: websocket.NewServer(hub, wsCfg, logger.Named("websocket")),
		Debug:     cfg.IsDevelopment(),
		Logger:    logger.Named("http"),
	}
	if cfg.EnableCORS {
		routerOpts.AllowedOrigins = cfg.AllowedOrigins
	}
	if container.Metrics != nil {
		routerOpts.Metrics = container.Metrics
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           rest.NewRouter(routerOpts).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.File != "" {
		watcher, err := config.NewWatcher(cfg, logger.Named("config"))
		if err != nil {
			logger.Warn("Config hot reload disabled", zap.Error(err))
		} else {
			watcher.OnChange(func(prev, next *config.Config) {
				applyReload(logger, container.LogLevel, prev, next)
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	if container.Forwarder != nil {
		g.Go(func() error { return container.Forwarder.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		hub.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// applyReload applies what can change without a restart and reports the
// rest
func applyReload(logger *zap.Logger, level zap.AtomicLevel, prev, next *config.Config) {
	if prev.LogLevel != next.LogLevel {
		if err := observability.SetLevel(level, next.LogLevel); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", next.LogLevel), zap.Error(err))
		} else {
			logger.Info("Log level changed", zap.String("level", next.LogLevel))
		}
	}
	if prev.ServerAddress != next.ServerAddress ||
		prev.TextGenProvider != next.TextGenProvider ||
		prev.EventBusName != next.EventBusName {
		logger.Warn("Configuration change requires a restart")
	}
}
