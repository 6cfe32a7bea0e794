// Package graph owns the pipeline's nodes and edges. Every mutation is a
// serialized command on Store; readers work on immutable snapshots.
package graph

import (
	"context"
	"errors"
	"strings"
	"sync"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/config"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"github.com/frenb/accelent/domain/services"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrStaleResult is returned when a runtime completion presents a revision
// that no longer matches the node: its input or config moved on while the
// computation was in flight.
var ErrStaleResult = errors.New("stale runtime result")

// Store is the GraphStore: the single owner of the node and edge
// collections, the viewport, and the propagation bookkeeping.
type Store struct {
	mu sync.Mutex

	nodes    []entities.Node
	index    map[valueobjects.NodeID]int
	edges    []entities.Edge
	viewport valueobjects.Viewport

	// tick is a logical clock ordering output changes and edge creation.
	tick        uint64
	outputStamp map[valueobjects.NodeID]uint64
	version     uint64

	planner *services.PlacementPlanner
	config  *config.DomainConfig
	bus     *appevents.Bus
	clock   clockwork.Clock
	logger  *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store's logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used to timestamp events
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDomainConfig overrides the placement and naming rules
func WithDomainConfig(cfg *config.DomainConfig) Option {
	return func(s *Store) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithBus shares an event bus with other stores
func WithBus(bus *appevents.Bus) Option {
	return func(s *Store) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// NewStore creates an empty graph
func NewStore(opts ...Option) *Store {
	s := &Store{
		index:       make(map[valueobjects.NodeID]int),
		outputStamp: make(map[valueobjects.NodeID]uint64),
		config:      config.DefaultDomainConfig(),
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = appevents.NewBus(s.logger)
	}
	s.planner = services.NewPlacementPlanner(s.config)
	s.viewport = valueobjects.Viewport{
		Width:  s.config.CanvasWidth,
		Height: s.config.CanvasHeight,
		Zoom:   1,
	}
	return s
}

// Bus returns the event bus the store publishes on
func (s *Store) Bus() *appevents.Bus {
	return s.bus
}

// Subscribe registers a handler for graph events. See appevents.ForNodes
// and appevents.ForTypes for filters.
func (s *Store) Subscribe(name string, handler appevents.HandlerFunc, filters ...appevents.Filter) func() {
	return s.bus.Subscribe(name, handler, filters...)
}

// tx collects the events raised by one command. Events are handed to the
// bus while the store lock is still held, which fixes their order, and
// delivered after it is released.
type tx struct {
	store  *Store
	events []events.DomainEvent
}

func (s *Store) begin() *tx {
	s.mu.Lock()
	return &tx{store: s}
}

func (t *tx) raise(evts ...events.DomainEvent) {
	t.events = append(t.events, evts...)
}

func (t *tx) commit() {
	s := t.store
	if len(t.events) > 0 {
		s.version++
	}
	s.bus.Enqueue(t.events...)
	s.mu.Unlock()
	s.bus.Drain(context.Background())
}

// AddNodeRequest describes a node to create.
//
// Exactly one placement mode applies: an explicit Position (no planning and
// no auto-connect), a Drop point in screen coordinates, or, when neither is
// set, palette placement.
type AddNodeRequest struct {
	Kind     entities.Kind
	Label    string
	Position *valueobjects.Position
	Drop     *ScreenPoint
	Tab      *entities.Tab
	Config   entities.KindConfig
}

// ScreenPoint is a coordinate in screen space
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AddNodeResult is the node created and the auto-connect edge, if any
type AddNodeResult struct {
	Node entities.Node
	Edge *entities.Edge
}

// AddNode creates a node, places it, and auto-connects it to the planned
// anchor.
func (s *Store) AddNode(req AddNodeRequest) (AddNodeResult, error) {
	if req.Kind == "" && req.Config != nil {
		req.Kind = req.Config.Kind()
	}
	if req.Kind == "" {
		return AddNodeResult{}, pkgerrors.NewValidationError("node kind is required")
	}
	if req.Config != nil && req.Config.Kind() != req.Kind {
		return AddNodeResult{}, pkgerrors.NewValidationError("config does not match node kind")
	}

	t := s.begin()
	defer t.commit()

	base := strings.TrimSpace(req.Label)
	if base == "" && req.Tab != nil {
		base = strings.TrimSpace(req.Tab.Name)
	}
	if base == "" {
		base = req.Kind.DefaultLabel()
	}

	cfg := req.Config
	if cfg == nil {
		if req.Tab != nil {
			cfg = entities.ConfigFromTab(req.Kind, *req.Tab)
		} else {
			cfg = entities.DefaultConfig(req.Kind)
		}
	}

	var (
		placement services.Placement
		err       error
	)
	switch {
	case req.Position != nil:
		placement = services.Placement{Position: *req.Position}
	case req.Drop != nil:
		placement, err = s.planner.PlanDrop(s.nodes, s.viewport, req.Drop.X, req.Drop.Y)
	default:
		placement, err = s.planner.PlanPalette(s.nodes, s.viewport)
	}
	if err != nil {
		return AddNodeResult{}, err
	}

	node := entities.NewNode(s.uniqueLabel(base, valueobjects.NodeID{}), placement.Position, cfg)
	if req.Tab != nil {
		node.TabID = req.Tab.ID
	}

	s.index[node.ID] = len(s.nodes)
	s.nodes = append(s.nodes, node)
	t.raise(events.NewNodeAdded(node, s.clock.Now()))

	s.logger.Debug("Node added",
		zap.String("nodeID", node.ID.String()),
		zap.String("kind", string(node.Kind())),
		zap.String("label", node.Label),
		zap.Float64("x", node.Position.X()),
		zap.Float64("y", node.Position.Y()),
	)

	result := AddNodeResult{}
	if src, dst, ok := placement.EdgeFor(node.ID); ok && !s.hasEdge(src, dst) {
		edge := s.connectLocked(t, src, dst, true)
		result.Edge = &edge
	}
	result.Node = s.nodes[s.index[node.ID]]
	return result, nil
}

// RemoveNode deletes a node and every incident edge. Targets that lost an
// upstream source are re-resolved.
func (s *Store) RemoveNode(id valueobjects.NodeID) error {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}

	var (
		kept      []entities.Edge
		removed   []valueobjects.EdgeID
		orphaned  []valueobjects.NodeID
		lostEdges []entities.Edge
	)
	for _, e := range s.edges {
		if e.Touches(id) {
			removed = append(removed, e.ID)
			lostEdges = append(lostEdges, e)
			if e.Source == id && e.Target != id {
				orphaned = append(orphaned, e.Target)
			}
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	s.reindex()
	delete(s.outputStamp, id)

	for _, e := range lostEdges {
		t.raise(events.NewEdgeDisconnected(e, s.clock.Now()))
	}
	t.raise(events.NewNodeRemoved(id, removed, s.clock.Now()))

	for _, target := range dedupe(orphaned) {
		s.refreshTarget(t, target, true)
	}

	s.logger.Debug("Node removed",
		zap.String("nodeID", id.String()),
		zap.Int("edgesRemoved", len(removed)),
	)
	return nil
}

// Connect appends an edge from source to target and propagates into the
// target. A self-loop is rejected as a no-op: ok is false and err is nil.
func (s *Store) Connect(source, target valueobjects.NodeID) (entities.Edge, bool, error) {
	t := s.begin()
	defer t.commit()

	if _, ok := s.index[source]; !ok {
		return entities.Edge{}, false, pkgerrors.NewNotFoundError("source node")
	}
	if _, ok := s.index[target]; !ok {
		return entities.Edge{}, false, pkgerrors.NewNotFoundError("target node")
	}
	if source == target {
		s.logger.Debug("Rejected self-loop connection", zap.String("nodeID", source.String()))
		return entities.Edge{}, false, nil
	}

	return s.connectLocked(t, source, target, false), true, nil
}

func (s *Store) connectLocked(t *tx, source, target valueobjects.NodeID, auto bool) entities.Edge {
	s.tick++
	edge := entities.NewEdge(source, target, s.tick)
	s.edges = append(s.edges, edge)
	t.raise(events.NewEdgeConnected(edge, auto, s.clock.Now()))

	s.refreshTarget(t, target, true)

	s.logger.Debug("Nodes connected",
		zap.String("edgeID", edge.ID.String()),
		zap.String("sourceID", source.String()),
		zap.String("targetID", target.String()),
		zap.Bool("auto", auto),
	)
	return edge
}

// Disconnect removes an edge and re-resolves the former target's input,
// clearing it when no other incoming edge remains.
func (s *Store) Disconnect(edgeID valueobjects.EdgeID) error {
	t := s.begin()
	defer t.commit()

	for i, e := range s.edges {
		if e.ID != edgeID {
			continue
		}
		s.edges = append(s.edges[:i], s.edges[i+1:]...)
		t.raise(events.NewEdgeDisconnected(e, s.clock.Now()))
		s.refreshTarget(t, e.Target, true)
		return nil
	}
	return pkgerrors.NewNotFoundError("edge")
}

// MoveNode sets a node's position, typically after a user drag
func (s *Store) MoveNode(id valueobjects.NodeID, pos valueobjects.Position) error {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	old := s.nodes[i].Position
	if old.Equals(pos) {
		return nil
	}
	s.nodes[i].Position = pos
	t.raise(events.NewNodeMoved(id, old, pos, s.clock.Now()))
	return nil
}

// RenameNode relabels a node, applying the unique-naming rule. The node's
// own current label does not count as taken.
func (s *Store) RenameNode(id valueobjects.NodeID, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", pkgerrors.NewValidationError("label cannot be empty")
	}

	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return "", pkgerrors.NewNotFoundError("node")
	}
	s.renameLocked(t, i, label)
	return s.nodes[i].Label, nil
}

func (s *Store) renameLocked(t *tx, i int, base string) {
	node := s.nodes[i]
	label := s.uniqueLabel(base, node.ID)
	if label == node.Label {
		return
	}
	s.nodes[i].Label = label
	t.raise(events.NewNodeRenamed(node.ID, node.Label, label, s.clock.Now()))
}

// ConfigureNode replaces a node's config. A config of another kind retypes
// the node. Either way the output is invalidated and the input kept.
func (s *Store) ConfigureNode(id valueobjects.NodeID, cfg entities.KindConfig) (entities.Node, error) {
	if cfg == nil {
		return entities.Node{}, pkgerrors.NewValidationError("config is required")
	}

	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError("node")
	}
	s.configureLocked(t, i, cfg)
	return s.nodes[i], nil
}

func (s *Store) configureLocked(t *tx, i int, cfg entities.KindConfig) {
	node := s.nodes[i]
	if node.Kind() != cfg.Kind() {
		s.nodes[i] = node.Retype(cfg)
		t.raise(events.NewNodeRetyped(node.ID, node.Kind(), cfg.Kind(), s.clock.Now()))
	} else {
		s.nodes[i] = node.WithConfig(cfg)
	}
	t.raise(events.NewNodeConfigChanged(s.nodes[i], s.clock.Now()))
	s.raiseStatus(t, node.Status, s.nodes[i])
}

// ApplyTabToNode substitutes a dropped tab's content into an existing node.
// The node is renamed to the tab's name. When the tab's inferred kind
// differs from the node's kind the node is retyped; otherwise only the
// content-bearing config field is replaced. Input is preserved and no edge
// is created.
func (s *Store) ApplyTabToNode(tab entities.Tab, nodeID valueobjects.NodeID) (entities.Node, error) {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[nodeID]
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError("node")
	}

	name := strings.TrimSpace(tab.Name)
	if name == "" {
		name = tab.ID.String()
	}
	if name != "" {
		s.renameLocked(t, i, name)
	}

	node := s.nodes[i]
	kind := node.Kind()
	if !tab.Classification.IsZero() {
		kind = tab.Classification.Kind.NodeKind()
	}

	var cfg entities.KindConfig
	if kind != node.Kind() {
		cfg = entities.ConfigFromTab(kind, tab)
	} else {
		cfg = node.Config.WithContent(tab.Content)
		if ds, ok := cfg.(entities.DataSourceConfig); ok && tab.Classification.Format != "" {
			ds.Format = tab.Classification.Format
			cfg = ds
		}
	}
	s.configureLocked(t, i, cfg)
	s.nodes[i].TabID = tab.ID

	s.logger.Debug("Tab applied to node",
		zap.String("nodeID", nodeID.String()),
		zap.String("tabID", tab.ID.String()),
		zap.String("kind", string(kind)),
	)
	return s.nodes[i], nil
}

// UpdateNodeOutput sets a node's output unconditionally and propagates it
// to every node the node feeds.
func (s *Store) UpdateNodeOutput(id valueobjects.NodeID, output string) error {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	s.applyOutputLocked(t, i, entities.StringPtr(output), entities.StatusResolved)
	return nil
}

// ApplyNodeOutput is the checked-apply used by runtimes: the result is
// applied only if the node is still at the revision the computation
// started from. Otherwise ErrStaleResult is returned and nothing changes.
func (s *Store) ApplyNodeOutput(id valueobjects.NodeID, revision uint64, output *string, status entities.NodeStatus) error {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	if s.nodes[i].Revision != revision {
		return ErrStaleResult
	}
	s.applyOutputLocked(t, i, output, status)
	return nil
}

// SetNodeStatus moves a node's runtime state machine, checked against the
// revision like ApplyNodeOutput.
func (s *Store) SetNodeStatus(id valueobjects.NodeID, revision uint64, status entities.NodeStatus) error {
	t := s.begin()
	defer t.commit()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	if s.nodes[i].Revision != revision {
		return ErrStaleResult
	}
	old := s.nodes[i].Status
	s.nodes[i].Status = status
	s.raiseStatus(t, old, s.nodes[i])
	return nil
}

// SetViewport records the visible canvas region used for placement
func (s *Store) SetViewport(vp valueobjects.Viewport) error {
	if _, err := valueobjects.NewViewport(vp.Width, vp.Height, vp.PanX, vp.PanY, vp.Zoom); err != nil {
		return err
	}

	t := s.begin()
	defer t.commit()

	s.viewport = vp
	t.raise(events.NewViewportChanged(vp, s.clock.Now()))
	return nil
}

// Node returns a copy of one node
func (s *Store) Node(id valueobjects.NodeID) (entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError("node")
	}
	return cloneNode(s.nodes[i]), nil
}

// Snapshot returns an immutable copy of the current graph
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]entities.Node, len(s.nodes))
	for i, n := range s.nodes {
		nodes[i] = cloneNode(n)
	}
	edges := make([]entities.Edge, len(s.edges))
	copy(edges, s.edges)

	return Snapshot{
		Nodes:    nodes,
		Edges:    edges,
		Viewport: s.viewport,
		Version:  s.version,
	}
}

func (s *Store) raiseStatus(t *tx, old entities.NodeStatus, node entities.Node) {
	if old == node.Status {
		return
	}
	t.raise(events.NewNodeStatusChanged(node.ID, old, node.Status, s.clock.Now()))
}

func (s *Store) uniqueLabel(base string, self valueobjects.NodeID) string {
	labels := make([]string, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.ID == self {
			continue
		}
		labels = append(labels, n.Label)
	}
	return services.UniqueLabel(base, labels, s.config.CopySuffixFormat)
}

func (s *Store) hasEdge(source, target valueobjects.NodeID) bool {
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

func (s *Store) reindex() {
	s.index = make(map[valueobjects.NodeID]int, len(s.nodes))
	for i, n := range s.nodes {
		s.index[n.ID] = i
	}
}

func cloneNode(n entities.Node) entities.Node {
	if n.Output != nil {
		n.Output = entities.StringPtr(*n.Output)
	}
	return n
}

func dedupe(ids []valueobjects.NodeID) []valueobjects.NodeID {
	seen := make(map[valueobjects.NodeID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
