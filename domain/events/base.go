package events

import (
	"time"

	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// NodeScoped is implemented by events that concern one or more nodes.
// Subscribers filtering by node id rely on it.
type NodeScoped interface {
	NodeIDs() []valueobjects.NodeID
}

// Event type names
const (
	TypeNodeAdded         = "node.added"
	TypeNodeRemoved       = "node.removed"
	TypeNodeMoved         = "node.moved"
	TypeNodeRenamed       = "node.renamed"
	TypeNodeRetyped       = "node.retyped"
	TypeNodeConfigChanged = "node.config_changed"
	TypeNodeInputChanged  = "node.input_changed"
	TypeNodeOutputChanged = "node.output_changed"
	TypeNodeStatusChanged = "node.status_changed"
	TypeEdgeConnected     = "edge.connected"
	TypeEdgeDisconnected  = "edge.disconnected"
	TypeTabCreated        = "tab.created"
	TypeTabUpdated        = "tab.updated"
	TypeTabRenamed        = "tab.renamed"
	TypeTabDeleted        = "tab.deleted"
	TypeTabClassified     = "tab.classified"
	TypeViewportChanged   = "viewport.changed"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Node Events

// NodeAdded is raised when a node is inserted into the graph
type NodeAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	Kind     entities.Kind         `json:"kind"`
	Label    string                `json:"label"`
	Position valueobjects.Position `json:"position"`
	TabID    valueobjects.TabID    `json:"tab_id,omitempty"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(node entities.Node, timestamp time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: newBase(node.ID.String(), TypeNodeAdded, timestamp),
		NodeID:    node.ID,
		Kind:      node.Kind(),
		Label:     node.Label,
		Position:  node.Position,
		TabID:     node.TabID,
	}
}

func (e NodeAdded) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeRemoved is raised when a node and its incident edges are deleted
type NodeRemoved struct {
	BaseEvent
	NodeID       valueobjects.NodeID   `json:"node_id"`
	RemovedEdges []valueobjects.EdgeID `json:"removed_edges"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(nodeID valueobjects.NodeID, removedEdges []valueobjects.EdgeID, timestamp time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent:    newBase(nodeID.String(), TypeNodeRemoved, timestamp),
		NodeID:       nodeID,
		RemovedEdges: removedEdges,
	}
}

func (e NodeRemoved) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeMoved is raised when a node is moved to a new position
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent:   newBase(nodeID.String(), TypeNodeMoved, timestamp),
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

func (e NodeMoved) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeRenamed is raised when a node's label changes
type NodeRenamed struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	OldLabel string              `json:"old_label"`
	NewLabel string              `json:"new_label"`
}

// NewNodeRenamed creates a NodeRenamed event
func NewNodeRenamed(nodeID valueobjects.NodeID, oldLabel, newLabel string, timestamp time.Time) NodeRenamed {
	return NodeRenamed{
		BaseEvent: newBase(nodeID.String(), TypeNodeRenamed, timestamp),
		NodeID:    nodeID,
		OldLabel:  oldLabel,
		NewLabel:  newLabel,
	}
}

func (e NodeRenamed) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeRetyped is raised when a node's kind variant is replaced
type NodeRetyped struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	OldKind entities.Kind       `json:"old_kind"`
	NewKind entities.Kind       `json:"new_kind"`
}

// NewNodeRetyped creates a NodeRetyped event
func NewNodeRetyped(nodeID valueobjects.NodeID, oldKind, newKind entities.Kind, timestamp time.Time) NodeRetyped {
	return NodeRetyped{
		BaseEvent: newBase(nodeID.String(), TypeNodeRetyped, timestamp),
		NodeID:    nodeID,
		OldKind:   oldKind,
		NewKind:   newKind,
	}
}

func (e NodeRetyped) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeConfigChanged is raised when a node's kind-specific config changes
type NodeConfigChanged struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	Kind     entities.Kind       `json:"kind"`
	Revision uint64              `json:"revision"`
}

// NewNodeConfigChanged creates a NodeConfigChanged event
func NewNodeConfigChanged(node entities.Node, timestamp time.Time) NodeConfigChanged {
	return NodeConfigChanged{
		BaseEvent: newBase(node.ID.String(), TypeNodeConfigChanged, timestamp),
		NodeID:    node.ID,
		Kind:      node.Kind(),
		Revision:  node.Revision,
	}
}

func (e NodeConfigChanged) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeInputChanged is raised by propagation when a node's resolved input is
// rewritten. The node's output is invalid from this point on.
type NodeInputChanged struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	Input    string              `json:"input"`
	Revision uint64              `json:"revision"`
}

// NewNodeInputChanged creates a NodeInputChanged event
func NewNodeInputChanged(node entities.Node, timestamp time.Time) NodeInputChanged {
	return NodeInputChanged{
		BaseEvent: newBase(node.ID.String(), TypeNodeInputChanged, timestamp),
		NodeID:    node.ID,
		Input:     node.Input,
		Revision:  node.Revision,
	}
}

func (e NodeInputChanged) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeOutputChanged is raised when a runtime result has been applied
type NodeOutputChanged struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Output *string             `json:"output"`
}

// NewNodeOutputChanged creates a NodeOutputChanged event
func NewNodeOutputChanged(nodeID valueobjects.NodeID, output *string, timestamp time.Time) NodeOutputChanged {
	return NodeOutputChanged{
		BaseEvent: newBase(nodeID.String(), TypeNodeOutputChanged, timestamp),
		NodeID:    nodeID,
		Output:    output,
	}
}

func (e NodeOutputChanged) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// NodeStatusChanged is raised when a node's runtime state machine moves
type NodeStatusChanged struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	OldStatus entities.NodeStatus `json:"old_status"`
	NewStatus entities.NodeStatus `json:"new_status"`
}

// NewNodeStatusChanged creates a NodeStatusChanged event
func NewNodeStatusChanged(nodeID valueobjects.NodeID, oldStatus, newStatus entities.NodeStatus, timestamp time.Time) NodeStatusChanged {
	return NodeStatusChanged{
		BaseEvent: newBase(nodeID.String(), TypeNodeStatusChanged, timestamp),
		NodeID:    nodeID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

func (e NodeStatusChanged) NodeIDs() []valueobjects.NodeID { return []valueobjects.NodeID{e.NodeID} }

// Edge Events

// EdgeConnected is raised when an edge is added
type EdgeConnected struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
	Auto     bool                `json:"auto"`
}

// NewEdgeConnected creates an EdgeConnected event
func NewEdgeConnected(edge entities.Edge, auto bool, timestamp time.Time) EdgeConnected {
	return EdgeConnected{
		BaseEvent: newBase(edge.ID.String(), TypeEdgeConnected, timestamp),
		EdgeID:    edge.ID,
		SourceID:  edge.Source,
		TargetID:  edge.Target,
		Auto:      auto,
	}
}

func (e EdgeConnected) NodeIDs() []valueobjects.NodeID {
	return []valueobjects.NodeID{e.SourceID, e.TargetID}
}

// EdgeDisconnected is raised when an edge is removed
type EdgeDisconnected struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewEdgeDisconnected creates an EdgeDisconnected event
func NewEdgeDisconnected(edge entities.Edge, timestamp time.Time) EdgeDisconnected {
	return EdgeDisconnected{
		BaseEvent: newBase(edge.ID.String(), TypeEdgeDisconnected, timestamp),
		EdgeID:    edge.ID,
		SourceID:  edge.Source,
		TargetID:  edge.Target,
	}
}

func (e EdgeDisconnected) NodeIDs() []valueobjects.NodeID {
	return []valueobjects.NodeID{e.SourceID, e.TargetID}
}

// ViewportChanged is raised when a client reports a new visible region
type ViewportChanged struct {
	BaseEvent
	Viewport valueobjects.Viewport `json:"viewport"`
}

// NewViewportChanged creates a ViewportChanged event
func NewViewportChanged(vp valueobjects.Viewport, timestamp time.Time) ViewportChanged {
	return ViewportChanged{
		BaseEvent: newBase("viewport", TypeViewportChanged, timestamp),
		Viewport:  vp,
	}
}
