package handlers

import (
	"net/http"

	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"go.uber.org/zap"
)

// GraphHandler serves the canvas as a whole
type GraphHandler struct {
	base
	ws *workspace.Workspace
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(ws *workspace.Workspace, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{base: newBase(errorHandler, logger), ws: ws}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, NewGraphResponse(h.ws.Graph.Snapshot()))
}

// SetViewportRequest is the visible canvas region
type SetViewportRequest struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
	PanX   float64 `json:"panX"`
	PanY   float64 `json:"panY"`
	Zoom   float64 `json:"zoom" validate:"gt=0"`
}

// SetViewport handles PUT /graph/viewport
func (h *GraphHandler) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req SetViewportRequest
	if !h.decode(w, r, &req) {
		return
	}
	vp := valueobjects.Viewport{Width: req.Width, Height: req.Height, PanX: req.PanX, PanY: req.PanY, Zoom: req.Zoom}
	if err := h.ws.Graph.SetViewport(vp); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, vp)
}

// Drop handles POST /drops
func (h *GraphHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req workspace.DropRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.ws.Drop(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, map[string]interface{}{
		"node":    toNodeResponse(res.Node),
		"edge":    toEdgeResponsePtr(res.Edge),
		"created": res.Created,
	})
}
