// Package runtime computes node outputs. Each kind has a runtime that
// watches for its node's output being invalidated and produces a new one,
// calling external collaborators where the kind needs them.
//
// Every completion goes through the graph store's checked-apply, so a
// result computed for an input or config that has since changed is
// discarded rather than applied.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/application/graph"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("accelent.runtime")

// Runtime produces outputs for one node kind
type Runtime interface {
	Kind() entities.Kind
	// Trigger is called when the node's output is unresolved. node is a
	// snapshot taken at trigger time.
	Trigger(node entities.Node)
	// Forget drops any per-node state, e.g. a pending debounce
	Forget(id valueobjects.NodeID)
	// Close stops timers and waits for in-flight work
	Close()
}

// NodeStore is the part of the graph store runtimes use
type NodeStore interface {
	Node(id valueobjects.NodeID) (entities.Node, error)
	ApplyNodeOutput(id valueobjects.NodeID, revision uint64, output *string, status entities.NodeStatus) error
	SetNodeStatus(id valueobjects.NodeID, revision uint64, status entities.NodeStatus) error
}

// Config configures the runtimes
type Config struct {
	Generator      ports.TextGenerator
	Documents      ports.DocumentService
	PromptDebounce time.Duration
	MemoCapacity   uint64
	Clock          clockwork.Clock
	Metrics        ports.Metrics
	Logger         *zap.Logger
}

func (c *Config) setDefaults() {
	if c.PromptDebounce <= 0 {
		c.PromptDebounce = time.Second
	}
	if c.MemoCapacity == 0 {
		c.MemoCapacity = 1024
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Metrics == nil {
		c.Metrics = ports.NoopMetrics{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Manager routes graph events to the runtime of each node's kind
type Manager struct {
	store    NodeStore
	runtimes map[entities.Kind]Runtime
	logger   *zap.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// NewManager creates the runtimes for every kind
func NewManager(store NodeStore, cfg Config) *Manager {
	cfg.setDefaults()

	m := &Manager{
		store:    store,
		runtimes: make(map[entities.Kind]Runtime),
		logger:   cfg.Logger,
	}
	for _, rt := range []Runtime{
		newDataSourceRuntime(store, cfg),
		newDisplayRuntime(store, cfg),
		newPromptRuntime(store, cfg),
		newSpreadsheetRuntime(store, cfg),
	} {
		m.runtimes[rt.Kind()] = rt
	}
	return m
}

// Attach subscribes the manager to the store's events
func (m *Manager) Attach(store *graph.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = store.Subscribe("node-runtime", m.handle, appevents.ForTypes(
		events.TypeNodeAdded,
		events.TypeNodeInputChanged,
		events.TypeNodeConfigChanged,
		events.TypeNodeRemoved,
	))
}

// Close detaches from the store and stops every runtime
func (m *Manager) Close() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Unlock()

	for _, rt := range m.runtimes {
		rt.Close()
	}
}

func (m *Manager) handle(_ context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.NodeRemoved:
		for _, rt := range m.runtimes {
			rt.Forget(e.NodeID)
		}
		return nil
	case events.NodeAdded:
		m.Evaluate(e.NodeID)
	case events.NodeInputChanged:
		m.Evaluate(e.NodeID)
	case events.NodeConfigChanged:
		// a retype leaves per-node state of the previous kind behind
		for kind, rt := range m.runtimes {
			if kind != e.Kind {
				rt.Forget(e.NodeID)
			}
		}
		m.Evaluate(e.NodeID)
	}
	return nil
}

// Evaluate triggers the node's runtime if its output is unresolved
func (m *Manager) Evaluate(id valueobjects.NodeID) {
	node, err := m.store.Node(id)
	if err != nil {
		return
	}
	if node.HasOutput() {
		return
	}
	rt, ok := m.runtimes[node.Kind()]
	if !ok {
		m.logger.Warn("No runtime for node kind",
			zap.String("nodeID", id.String()),
			zap.String("kind", string(node.Kind())),
		)
		return
	}
	rt.Trigger(node)
}

// applier wraps checked-apply with the logging and metrics every runtime
// needs
type applier struct {
	store   NodeStore
	kind    entities.Kind
	metrics ports.Metrics
	logger  *zap.Logger
}

func (a applier) apply(node entities.Node, output *string, status entities.NodeStatus) bool {
	err := a.store.ApplyNodeOutput(node.ID, node.Revision, output, status)
	return a.check(node, err)
}

func (a applier) setStatus(node entities.Node, status entities.NodeStatus) bool {
	err := a.store.SetNodeStatus(node.ID, node.Revision, status)
	return a.check(node, err)
}

func (a applier) check(node entities.Node, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, graph.ErrStaleResult):
		a.metrics.RecordStaleResult(string(a.kind))
		a.logger.Debug("Discarded stale result",
			zap.String("nodeID", node.ID.String()),
			zap.Uint64("revision", node.Revision),
		)
	default:
		a.logger.Debug("Result not applied",
			zap.String("nodeID", node.ID.String()),
			zap.Error(err),
		)
	}
	return false
}
