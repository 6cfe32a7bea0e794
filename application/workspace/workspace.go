// Package workspace ties the graph, the tabs and the background workers
// together behind the operations a canvas performs: dropping tabs,
// materialising outputs, and keeping classifications fresh.
package workspace

import (
	"context"
	"errors"
	"strings"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/application/classification"
	"github.com/frenb/accelent/application/graph"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/application/runtime"
	"github.com/frenb/accelent/application/tabs"
	"github.com/frenb/accelent/domain/config"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Options configures a workspace
type Options struct {
	Domain     *config.DomainConfig
	Classifier classification.Classifier
	Runtime    runtime.Config
	Metrics    ports.Metrics
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// Workspace owns one canvas and its tabs
type Workspace struct {
	Graph     *graph.Store
	Tabs      *tabs.Store
	Runtimes  *runtime.Manager
	Debouncer *classification.Debouncer

	bus        *appevents.Bus
	classifier classification.Classifier
	logger     *zap.Logger
	detach     []func()
}

// New builds a workspace whose stores share one event bus. Runtimes and
// the classification debouncer are attached before New returns.
func New(opts Options) *Workspace {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Domain == nil {
		opts.Domain = config.DefaultDomainConfig()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NoopMetrics{}
	}
	if opts.Classifier == nil {
		opts.Classifier = classification.NewService(nil, 0, opts.Metrics, opts.Logger)
	}

	bus := appevents.NewBus(opts.Logger.Named("bus"))
	graphStore := graph.NewStore(
		graph.WithBus(bus),
		graph.WithClock(opts.Clock),
		graph.WithDomainConfig(opts.Domain),
		graph.WithLogger(opts.Logger.Named("graph")),
	)
	tabStore := tabs.NewStore(bus, opts.Domain, opts.Clock, opts.Logger.Named("tabs"))

	rtCfg := opts.Runtime
	if rtCfg.Clock == nil {
		rtCfg.Clock = opts.Clock
	}
	if rtCfg.PromptDebounce <= 0 {
		rtCfg.PromptDebounce = opts.Domain.PromptDebounce
	}
	if rtCfg.Metrics == nil {
		rtCfg.Metrics = opts.Metrics
	}
	if rtCfg.Logger == nil {
		rtCfg.Logger = opts.Logger.Named("runtime")
	}
	manager := runtime.NewManager(graphStore, rtCfg)
	manager.Attach(graphStore)

	debouncer := classification.NewDebouncer(
		opts.Classifier,
		tabStore,
		opts.Domain.ClassifyDebounce,
		opts.Clock,
		func(err error) bool { return errors.Is(err, tabs.ErrStaleClassification) },
		opts.Logger.Named("classification"),
	)

	w := &Workspace{
		Graph:      graphStore,
		Tabs:       tabStore,
		Runtimes:   manager,
		Debouncer:  debouncer,
		bus:        bus,
		classifier: opts.Classifier,
		logger:     opts.Logger,
	}
	w.detach = append(w.detach,
		debouncer.Attach(bus),
		bus.Subscribe("classification-cancel", func(_ context.Context, e events.DomainEvent) error {
			if te, ok := e.(events.TabEvent); ok {
				debouncer.Cancel(te.TabID)
			}
			return nil
		}, appevents.ForTypes(events.TypeTabDeleted)),
		bus.Subscribe("event-metrics", func(_ context.Context, e events.DomainEvent) error {
			opts.Metrics.RecordEvent(e.GetEventType())
			return nil
		}),
	)
	return w
}

// Bus returns the event bus shared by the graph and the tabs
func (w *Workspace) Bus() *appevents.Bus {
	return w.bus
}

// Classifier returns the classifier used for tabs and drops
func (w *Workspace) Classifier() classification.Classifier {
	return w.classifier
}

// Close detaches every worker and waits for in-flight work
func (w *Workspace) Close() {
	for _, detach := range w.detach {
		detach()
	}
	w.detach = nil
	w.Runtimes.Close()
	w.Debouncer.Close()
	if c, ok := w.classifier.(interface{ Close() }); ok {
		c.Close()
	}
}

// DropRequest is the drag-and-drop transfer from a tab onto the canvas. A
// target node routes the drop onto that node; otherwise a new node is
// created at the screen point, or by palette placement when there is none.
type DropRequest struct {
	TabID        string             `json:"tabId"`
	TabName      string             `json:"tabName"`
	TabContent   string             `json:"tabContent"`
	TabType      string             `json:"tabType,omitempty"`
	TargetNodeID string             `json:"targetNodeId,omitempty"`
	Screen       *graph.ScreenPoint `json:"screen,omitempty"`
}

// DropResult is the node the drop created or changed
type DropResult struct {
	Node    entities.Node  `json:"node"`
	Edge    *entities.Edge `json:"edge,omitempty"`
	Created bool           `json:"created"`
}

// Drop applies a tab drop to the canvas
func (w *Workspace) Drop(ctx context.Context, req DropRequest) (DropResult, error) {
	tab, err := w.resolveTab(ctx, req)
	if err != nil {
		return DropResult{}, err
	}

	if req.TargetNodeID != "" {
		target, err := valueobjects.ParseNodeID(req.TargetNodeID)
		if err != nil {
			return DropResult{}, pkgerrors.NewValidationError("invalid targetNodeId")
		}
		node, err := w.Graph.ApplyTabToNode(tab, target)
		if err != nil {
			return DropResult{}, err
		}
		w.logger.Info("Tab dropped on node",
			zap.String("tabID", tab.ID.String()),
			zap.String("nodeID", node.ID.String()),
			zap.String("kind", string(node.Kind())),
		)
		return DropResult{Node: node}, nil
	}

	res, err := w.Graph.AddNode(graph.AddNodeRequest{
		Kind: tab.Classification.Kind.NodeKind(),
		Tab:  &tab,
		Drop: req.Screen,
	})
	if err != nil {
		return DropResult{}, err
	}
	w.logger.Info("Tab dropped on canvas",
		zap.String("tabID", tab.ID.String()),
		zap.String("nodeID", res.Node.ID.String()),
		zap.Bool("connected", res.Edge != nil),
	)
	return DropResult{Node: res.Node, Edge: res.Edge, Created: true}, nil
}

// resolveTab merges the drop payload with the stored tab, if any. The
// payload wins because it carries what the user was looking at. A tab with
// no classification yet is classified on the spot.
func (w *Workspace) resolveTab(ctx context.Context, req DropRequest) (entities.Tab, error) {
	id := valueobjects.TabID(strings.TrimSpace(req.TabID))
	if id.IsZero() && strings.TrimSpace(req.TabName) == "" && req.TabContent == "" {
		return entities.Tab{}, pkgerrors.NewValidationError("drop carries no tab")
	}

	tab := entities.NewTab(id, strings.TrimSpace(req.TabName), req.TabContent)
	if !id.IsZero() {
		if stored, err := w.Tabs.Get(id); err == nil {
			if tab.Name == "" || tab.Name == id.String() {
				tab.Name = stored.Name
			}
			if req.TabContent == "" {
				tab.Content = stored.Content
			}
			if tab.Content == stored.Content {
				tab.Classification = stored.Classification
			}
		}
	}

	var hint entities.ContentKind
	if req.TabType != "" {
		kind, err := entities.ParseContentKind(req.TabType)
		if err != nil {
			return entities.Tab{}, err
		}
		hint = kind
	}

	if tab.Classification.IsZero() {
		tab.Classification = w.classifier.Classify(ctx, tab.Content, hint).Classification
	}
	if hint != "" && tab.Classification.Kind != hint {
		tab.Classification.Kind = hint
		if hint != entities.ContentDataset {
			tab.Classification.Format = ""
		}
	}
	return tab, nil
}

// MaterializeOutput copies a node's output into a new tab
func (w *Workspace) MaterializeOutput(id valueobjects.NodeID) (entities.Tab, error) {
	node, err := w.Graph.Node(id)
	if err != nil {
		return entities.Tab{}, err
	}
	if !node.HasOutput() {
		return entities.Tab{}, pkgerrors.NewValidationError("node has no output")
	}
	return w.Tabs.CreateOutputTab(node.Label, *node.Output)
}
