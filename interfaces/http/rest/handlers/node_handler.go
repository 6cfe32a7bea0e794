package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/frenb/accelent/application/graph"
	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/frenb/accelent/pkg/utils"
	"go.uber.org/zap"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	base
	ws *workspace.Workspace
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(ws *workspace.Workspace, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{base: newBase(errorHandler, logger), ws: ws}
}

// Point is a coordinate pair in a request body
type Point struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// AddNodeRequest represents the request body for creating a node. Position
// places the node exactly; Screen places it as a drop; with neither the
// node goes to the next palette slot.
type AddNodeRequest struct {
	Kind     string             `json:"kind" validate:"required"`
	Label    string             `json:"label,omitempty" validate:"omitempty,max=200"`
	Position *Point             `json:"position,omitempty"`
	Screen   *graph.ScreenPoint `json:"screen,omitempty"`
	Config   json.RawMessage    `json:"config,omitempty"`
}

// AddNode handles POST /nodes
func (h *NodeHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Position != nil && req.Screen != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("position and screen are mutually exclusive"))
		return
	}

	kind, err := entities.ParseKind(req.Kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cfg, err := entities.DecodeConfig(kind, req.Config)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	add := graph.AddNodeRequest{Kind: kind, Label: req.Label, Config: cfg, Drop: req.Screen}
	if req.Position != nil {
		if err := utils.ValidateStruct(req.Position); err != nil {
			h.respondError(w, r, pkgerrors.NewValidationError(err.Error()))
			return
		}
		pos, err := valueobjects.NewPosition(*req.Position.X, *req.Position.Y)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		add.Position = &pos
	}

	res, err := h.ws.Graph.AddNode(add)
	if err != nil {
		h.logger.Error("Failed to add node", zap.String("kind", string(kind)), zap.Error(err))
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"node": toNodeResponse(res.Node),
		"edge": toEdgeResponsePtr(res.Edge),
	})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	node, err := h.ws.Graph.Node(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toNodeResponse(node))
}

// MoveNode handles PUT /nodes/{nodeID}/position
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	var req Point
	if !h.decode(w, r, &req) {
		return
	}
	pos, err := valueobjects.NewPosition(*req.X, *req.Y)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.ws.Graph.MoveNode(id, pos); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id.String(), "position": pos})
}

// RenameNodeRequest carries the requested label
type RenameNodeRequest struct {
	Label string `json:"label" validate:"required,max=200"`
}

// RenameNode handles PUT /nodes/{nodeID}/label. The stored label may carry
// a suffix when the requested one is taken.
func (h *NodeHandler) RenameNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	var req RenameNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	label, err := h.ws.Graph.RenameNode(id, req.Label)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id.String(), "label": label})
}

// ConfigureNodeRequest replaces a node's config. A kind other than the
// node's current one retypes it.
type ConfigureNodeRequest struct {
	Kind   string          `json:"kind,omitempty"`
	Config json.RawMessage `json:"config"`
}

// ConfigureNode handles PUT /nodes/{nodeID}/config
func (h *NodeHandler) ConfigureNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	var req ConfigureNodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	node, err := h.ws.Graph.Node(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	kind := node.Kind()
	if req.Kind != "" {
		if kind, err = entities.ParseKind(req.Kind); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	cfg, err := entities.DecodeConfig(kind, req.Config)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.ws.Graph.ConfigureNode(id, cfg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toNodeResponse(updated))
}

// SetOutputRequest carries a manually supplied output
type SetOutputRequest struct {
	Output string `json:"output"`
}

// SetOutput handles PUT /nodes/{nodeID}/output
func (h *NodeHandler) SetOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	var req SetOutputRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ws.Graph.UpdateNodeOutput(id, req.Output); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate handles POST /nodes/{nodeID}/evaluate. The runtime runs in the
// background; clients follow progress on the event stream.
func (h *NodeHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	if _, err := h.ws.Graph.Node(id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.ws.Runtimes.Evaluate(id)
	w.WriteHeader(http.StatusAccepted)
}

// MaterializeOutput handles POST /nodes/{nodeID}/output-tab
func (h *NodeHandler) MaterializeOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	tab, err := h.ws.MaterializeOutput(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, tab)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nodeID(w, r)
	if !ok {
		return
	}
	if err := h.ws.Graph.RemoveNode(id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
