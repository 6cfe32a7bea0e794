package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frenb/accelent/application/tabs"
	"github.com/frenb/accelent/application/workspace"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"go.uber.org/zap"
)

// TabHandler handles tab CRUD and content classification
type TabHandler struct {
	base
	ws *workspace.Workspace
}

// NewTabHandler creates a new tab handler
func NewTabHandler(ws *workspace.Workspace, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *TabHandler {
	return &TabHandler{base: newBase(errorHandler, logger), ws: ws}
}

// CreateTabRequest represents the request body for creating a tab. An
// empty id is derived from the name.
type CreateTabRequest struct {
	ID      string `json:"id,omitempty" validate:"omitempty,max=200"`
	Name    string `json:"name,omitempty" validate:"omitempty,max=200"`
	Content string `json:"content"`
}

// UpdateTabRequest changes a tab's content, its name, or both
type UpdateTabRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content,omitempty"`
}

// ClassifyRequest asks for the content category of free text
type ClassifyRequest struct {
	Content string `json:"content" validate:"required"`
	Hint    string `json:"hint,omitempty"`
}

// ListTabs handles GET /tabs
func (h *TabHandler) ListTabs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"tabs": h.ws.Tabs.List()})
}

// CreateTab handles POST /tabs
func (h *TabHandler) CreateTab(w http.ResponseWriter, r *http.Request) {
	var req CreateTabRequest
	if !h.decode(w, r, &req) {
		return
	}
	tab, err := h.ws.Tabs.Create(valueobjects.TabID(strings.TrimSpace(req.ID)), req.Name, req.Content)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, tab)
}

// GetTab handles GET /tabs/{tabID}
func (h *TabHandler) GetTab(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tabID(w, r)
	if !ok {
		return
	}
	tab, err := h.ws.Tabs.Get(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tab)
}

// UpdateTab handles PATCH /tabs/{tabID}
func (h *TabHandler) UpdateTab(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tabID(w, r)
	if !ok {
		return
	}
	var req UpdateTabRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == nil && req.Content == nil {
		h.respondError(w, r, pkgerrors.NewValidationError("nothing to update"))
		return
	}

	tab, err := h.ws.Tabs.Get(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Name != nil {
		if tab, err = h.ws.Tabs.Rename(id, *req.Name); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	if req.Content != nil {
		if tab, err = h.ws.Tabs.UpdateContent(id, *req.Content); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	h.respondJSON(w, http.StatusOK, tab)
}

// DeleteTab handles DELETE /tabs/{tabID}
func (h *TabHandler) DeleteTab(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tabID(w, r)
	if !ok {
		return
	}
	if err := h.ws.Tabs.Delete(id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClassifyTab handles POST /tabs/{tabID}/classify. It classifies the
// current content immediately instead of waiting for the debounce.
func (h *TabHandler) ClassifyTab(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tabID(w, r)
	if !ok {
		return
	}
	tab, err := h.ws.Tabs.Get(id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.ws.Debouncer.Cancel(id)
	res := h.ws.Classifier().Classify(r.Context(), tab.Content, "")
	updated, err := h.ws.Tabs.ApplyClassification(id, tab.Fingerprint(), res.Classification)
	if errors.Is(err, tabs.ErrStaleClassification) {
		h.respondError(w, r, pkgerrors.NewConflictError("tab changed while it was being classified"))
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tab":    updated,
		"source": res.Source,
	})
}

// Classify handles POST /classify for content that is not in a tab
func (h *TabHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	var hint entities.ContentKind
	if req.Hint != "" {
		kind, err := entities.ParseContentKind(req.Hint)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		hint = kind
	}
	h.respondJSON(w, http.StatusOK, h.ws.Classifier().Classify(r.Context(), req.Content, hint))
}
