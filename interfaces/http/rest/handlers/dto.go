package handlers

import (
	"github.com/frenb/accelent/application/graph"
	"github.com/frenb/accelent/application/runtime"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// NodeResponse is the wire form of a node
type NodeResponse struct {
	ID       string                `json:"id"`
	Label    string                `json:"label"`
	Kind     entities.Kind         `json:"kind"`
	Position valueobjects.Position `json:"position"`
	Config   entities.KindConfig   `json:"config"`
	Input    string                `json:"input"`
	Output   *string               `json:"output"`
	Status   entities.NodeStatus   `json:"status"`
	Revision uint64                `json:"revision"`
	TabID    string                `json:"tabId,omitempty"`
	View     runtime.View          `json:"view"`
}

// EdgeResponse is the wire form of an edge
type EdgeResponse struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Stamp  uint64 `json:"stamp"`
}

// GraphResponse is a full canvas snapshot
type GraphResponse struct {
	Nodes    []NodeResponse        `json:"nodes"`
	Edges    []EdgeResponse        `json:"edges"`
	Viewport valueobjects.Viewport `json:"viewport"`
	Version  uint64                `json:"version"`
}

func toNodeResponse(n entities.Node) NodeResponse {
	return NodeResponse{
		ID:       n.ID.String(),
		Label:    n.Label,
		Kind:     n.Kind(),
		Position: n.Position,
		Config:   n.Config,
		Input:    n.Input,
		Output:   n.Output,
		Status:   n.Status,
		Revision: n.Revision,
		TabID:    n.TabID.String(),
		View:     runtime.ViewOf(n),
	}
}

func toEdgeResponse(e entities.Edge) EdgeResponse {
	return EdgeResponse{
		ID:     e.ID.String(),
		Source: e.Source.String(),
		Target: e.Target.String(),
		Stamp:  e.Stamp,
	}
}

func toEdgeResponsePtr(e *entities.Edge) *EdgeResponse {
	if e == nil {
		return nil
	}
	out := toEdgeResponse(*e)
	return &out
}

// NewGraphResponse converts a snapshot to its wire form
func NewGraphResponse(s graph.Snapshot) GraphResponse {
	out := GraphResponse{
		Nodes:    make([]NodeResponse, 0, len(s.Nodes)),
		Edges:    make([]EdgeResponse, 0, len(s.Edges)),
		Viewport: s.Viewport,
		Version:  s.Version,
	}
	for _, n := range s.Nodes {
		out.Nodes = append(out.Nodes, toNodeResponse(n))
	}
	for _, e := range s.Edges {
		out.Edges = append(out.Edges, toEdgeResponse(e))
	}
	return out
}
