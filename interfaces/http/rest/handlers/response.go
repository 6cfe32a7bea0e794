// Package handlers implements the workspace REST endpoints.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/frenb/accelent/domain/core/valueobjects"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/frenb/accelent/pkg/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// base carries what every handler needs to answer a request
type base struct {
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func newBase(errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errorHandler == nil {
		errorHandler = pkgerrors.NewErrorHandler(logger, false)
	}
	return base{errors: errorHandler, logger: logger}
}

func (b base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (b base) respondError(w http.ResponseWriter, r *http.Request, err error) {
	b.errors.Handle(w, r, err)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (b base) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		b.errors.HandleStatus(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		b.respondError(w, r, pkgerrors.NewValidationError(err.Error()))
		return false
	}
	return true
}

func (b base) nodeID(w http.ResponseWriter, r *http.Request) (valueobjects.NodeID, bool) {
	id, err := valueobjects.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		b.respondError(w, r, pkgerrors.NewValidationError("Node ID is required"))
		return valueobjects.NodeID{}, false
	}
	return id, true
}

func (b base) tabID(w http.ResponseWriter, r *http.Request) (valueobjects.TabID, bool) {
	id := valueobjects.TabID(strings.TrimSpace(chi.URLParam(r, "tabID")))
	if id.IsZero() {
		b.respondError(w, r, pkgerrors.NewValidationError("Tab ID is required"))
		return "", false
	}
	return id, true
}
