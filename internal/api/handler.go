// Package api serves the HTTP API and mounts the websocket hub.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matheus3301/wachat/internal/hub"
	"github.com/matheus3301/wachat/internal/store"
	intsync "github.com/matheus3301/wachat/internal/sync"
	"go.uber.org/zap"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "wachat"

// maxBodyBytes bounds request bodies, webhook payloads included.
const maxBodyBytes = 1 << 20

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db     *store.DB
	engine *intsync.Engine
	hub    *hub.Hub
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(db *store.DB, engine *intsync.Engine, h *hub.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, engine: engine, hub: h, logger: logger}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

func (h *Handler) errorJSON(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		body.Message = err.Error()
	}
	h.json(w, status, body)
}

// fail maps a store error to a status code and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		h.errorJSON(w, http.StatusBadRequest, msg, err)
	case errors.Is(err, store.ErrNotFound):
		h.errorJSON(w, http.StatusNotFound, msg, err)
	default:
		h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
		h.errorJSON(w, http.StatusInternalServerError, msg, err)
	}
}
