package handlers

import (
	"net/http"

	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	base
	ws *workspace.Workspace
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(ws *workspace.Workspace, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{base: newBase(errorHandler, logger), ws: ws}
}

// ConnectRequest represents the request body for creating an edge
type ConnectRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Connect handles POST /edges. Connecting a node to itself is accepted and
// ignored.
func (h *EdgeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decode(w, r, &req) {
		return
	}
	source, err := valueobjects.ParseNodeID(req.Source)
	if err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("invalid source"))
		return
	}
	target, err := valueobjects.ParseNodeID(req.Target)
	if err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("invalid target"))
		return
	}

	edge, ok, err := h.ws.Graph.Connect(source, target)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !ok {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"connected": true,
		"edge":      toEdgeResponse(edge),
	})
}

// Disconnect handles DELETE /edges/{edgeID}
func (h *EdgeHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.ParseEdgeID(chi.URLParam(r, "edgeID"))
	if err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("Edge ID is required"))
		return
	}
	if err := h.ws.Graph.Disconnect(id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
