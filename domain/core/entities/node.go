package entities

import (
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// NodeStatus is the externally visible state of a node's runtime.
//
//	idle -> pending -> executing -> resolved | failed
//
// no_data is the terminal state for input that a kind cannot use.
type NodeStatus string

const (
	StatusIdle      NodeStatus = "idle"
	StatusPending   NodeStatus = "pending"
	StatusExecuting NodeStatus = "executing"
	StatusResolved  NodeStatus = "resolved"
	StatusFailed    NodeStatus = "failed"
	StatusNoData    NodeStatus = "no_data"
)

// Node is one step of the pipeline. Node values are snapshots: every
// mutation goes through the graph store, which replaces the stored value.
type Node struct {
	ID       valueobjects.NodeID
	Label    string
	Position valueobjects.Position
	Config   KindConfig

	// Input is written only by propagation; empty when nothing is connected.
	Input string
	// Output is written only by the node's runtime. nil means "needs
	// recomputation".
	Output *string

	Status NodeStatus
	// Revision increases on every input, config or kind change. Runtime
	// completions must present the revision they started from.
	Revision uint64

	// TabID is a weak back-reference to the tab that created the node.
	TabID valueobjects.TabID
}

// NewNode creates a node of the given configuration at a position
func NewNode(label string, pos valueobjects.Position, cfg KindConfig) Node {
	if cfg == nil {
		cfg = DisplayConfig{}
	}
	return Node{
		ID:       valueobjects.NewNodeID(),
		Label:    label,
		Position: pos,
		Config:   cfg,
		Status:   StatusIdle,
	}
}

// Kind returns the node's kind, derived from its config variant
func (n Node) Kind() Kind {
	return n.Config.Kind()
}

// HasOutput reports whether the node currently holds a computed output
func (n Node) HasOutput() bool {
	return n.Output != nil
}

// OutputOrEmpty returns the output text, or "" while it is unresolved
func (n Node) OutputOrEmpty() string {
	if n.Output == nil {
		return ""
	}
	return *n.Output
}

// Retype replaces the kind variant. Config and output are reset; input and
// identity are kept.
func (n Node) Retype(cfg KindConfig) Node {
	n.Config = cfg
	n.Output = nil
	n.Status = StatusIdle
	n.Revision++
	return n
}

// WithConfig replaces the config of the same kind and invalidates the output.
func (n Node) WithConfig(cfg KindConfig) Node {
	n.Config = cfg
	n.Output = nil
	n.Status = StatusIdle
	n.Revision++
	return n
}

// WithInput sets the propagated input and invalidates the output.
func (n Node) WithInput(input string) Node {
	n.Input = input
	n.Output = nil
	n.Status = StatusIdle
	n.Revision++
	return n
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
