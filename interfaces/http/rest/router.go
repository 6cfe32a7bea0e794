// Package rest exposes a workspace over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/interfaces/http/rest/handlers"
	"github.com/frenb/accelent/interfaces/http/rest/middleware"
	pkgerrors "github.com/frenb/accelent/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// MetricsSource is implemented by the Prometheus collector
type MetricsSource interface {
	middleware.HTTPRecorder
	Handler() http.Handler
}

// Options configures the router. Everything but Workspace is optional.
type Options struct {
	Workspace      *workspace.Workspace
	Metrics        MetricsSource
	WebSocket      http.Handler
	AllowedOrigins []string
	RequestTimeout time.Duration
	Debug          bool
	// Ready reports whether dependencies are usable; nil means always ready
	Ready  func() error
	Logger *zap.Logger
}

// Router creates and configures the HTTP router
type Router struct {
	opts         Options
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &Router{
		opts:         opts,
		errorHandler: pkgerrors.NewErrorHandler(opts.Logger, opts.Debug),
		logger:       opts.Logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(middleware.EchoRequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.opts.Metrics != nil {
		router.Use(middleware.Metrics(rt.opts.Metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}
	if rt.opts.WebSocket != nil {
		router.Method(http.MethodGet, "/ws", rt.opts.WebSocket)
	}

	ws := rt.opts.Workspace
	graphHandler := handlers.NewGraphHandler(ws, rt.errorHandler, rt.logger)
	nodeHandler := handlers.NewNodeHandler(ws, rt.errorHandler, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(ws, rt.errorHandler, rt.logger)
	tabHandler := handlers.NewTabHandler(ws, rt.errorHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(rt.opts.RequestTimeout))

		r.Get("/graph", graphHandler.GetGraph)
		r.Put("/graph/viewport", graphHandler.SetViewport)
		r.Post("/drops", graphHandler.Drop)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.AddNode)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Put("/{nodeID}/position", nodeHandler.MoveNode)
			r.Put("/{nodeID}/label", nodeHandler.RenameNode)
			r.Put("/{nodeID}/config", nodeHandler.ConfigureNode)
			r.Put("/{nodeID}/output", nodeHandler.SetOutput)
			r.Post("/{nodeID}/evaluate", nodeHandler.Evaluate)
			r.Post("/{nodeID}/output-tab", nodeHandler.MaterializeOutput)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.Connect)
			r.Delete("/{edgeID}", edgeHandler.Disconnect)
		})

		r.Route("/tabs", func(r chi.Router) {
			r.Get("/", tabHandler.ListTabs)
			r.Post("/", tabHandler.CreateTab)
			r.Get("/{tabID}", tabHandler.GetTab)
			r.Patch("/{tabID}", tabHandler.UpdateTab)
			r.Delete("/{tabID}", tabHandler.DeleteTab)
			r.Post("/{tabID}/classify", tabHandler.ClassifyTab)
		})

		r.Post("/classify", tabHandler.Classify)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.opts.Ready != nil {
		if err := rt.opts.Ready(); err != nil {
			rt.errorHandler.Handle(w, req, pkgerrors.NewUnavailableError(err.Error()))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
