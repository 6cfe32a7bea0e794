package graph

import (
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// Snapshot is an immutable copy of the graph taken at one point in time
type Snapshot struct {
	Nodes    []entities.Node
	Edges    []entities.Edge
	Viewport valueobjects.Viewport
	// Version increases with every command that changed the graph
	Version uint64
}

// Node looks up a node by id
func (s Snapshot) Node(id valueobjects.NodeID) (entities.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return entities.Node{}, false
}

// NodeByLabel looks up a node by its unique label
func (s Snapshot) NodeByLabel(label string) (entities.Node, bool) {
	for _, n := range s.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return entities.Node{}, false
}

// Incoming returns the edges targeting id, in creation order
func (s Snapshot) Incoming(id valueobjects.NodeID) []entities.Edge {
	var out []entities.Edge
	for _, e := range s.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges leaving id, in creation order
func (s Snapshot) Outgoing(id valueobjects.NodeID) []entities.Edge {
	var out []entities.Edge
	for _, e := range s.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Labels returns all node labels in node order
func (s Snapshot) Labels() []string {
	labels := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		labels[i] = n.Label
	}
	return labels
}
