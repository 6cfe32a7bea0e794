package entities

import (
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// Edge is a directed connection carrying source.output into target.input
type Edge struct {
	ID     valueobjects.EdgeID
	Source valueobjects.NodeID
	Target valueobjects.NodeID

	// Stamp is the logical time the edge was created; it takes part in
	// resolving which of several incoming edges supplies a node's input.
	Stamp uint64
}

// NewEdge creates an edge between two nodes
func NewEdge(source, target valueobjects.NodeID, stamp uint64) Edge {
	return Edge{
		ID:     valueobjects.NewEdgeID(),
		Source: source,
		Target: target,
		Stamp:  stamp,
	}
}

// IsSelfLoop reports whether the edge connects a node to itself
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Touches reports whether the node is either endpoint of the edge
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}
