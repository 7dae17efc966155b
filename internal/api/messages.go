package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/wachat/internal/store"
	"go.uber.org/zap"
)

// Root answers GET / with a liveness banner.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, map[string]string{
		"message":   "wachat server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health answers GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   ServiceName,
	})
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	store.Stats
	Connections int `json:"connections"`
}

// Stats answers GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.db.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to read stats", err)
		return
	}
	resp := StatsResponse{Stats: s}
	if h.hub != nil {
		resp.Connections = h.hub.Registry().Len()
	}
	h.json(w, http.StatusOK, resp)
}

// ListConversations answers GET /api/conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.db.ListConversations(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to fetch conversations", err)
		return
	}
	h.json(w, http.StatusOK, convs)
}

// ListMessages answers GET /api/messages/{wa_id}.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	waID := chi.URLParam(r, "wa_id")
	msgs, err := h.db.ListMessages(r.Context(), waID)
	if err != nil {
		h.fail(w, r, "Failed to fetch messages", err)
		return
	}
	h.json(w, http.StatusOK, msgs)
}

// CreateMessage answers POST /api/messages. The new message is not
// broadcast here; the sending client announces it over the hub.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var in store.NewMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		h.errorJSON(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if err := in.Validate(); err != nil {
		h.errorJSON(w, http.StatusBadRequest, "Missing required fields: wa_id, content, from, to", err)
		return
	}
	m, err := h.db.CreateMessage(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to create demo message", err)
		return
	}
	h.logger.Info("demo message created", zap.String("message_id", m.MessageID), zap.String("wa_id", m.WaID))
	h.json(w, http.StatusCreated, m)
}

// Search answers GET /api/search?q=&wa_id=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errorJSON(w, http.StatusBadRequest, "Invalid limit", fmt.Errorf("limit %q is not a non-negative integer", raw))
			return
		}
		limit = n
	}
	results, err := h.db.SearchMessages(r.Context(), q.Get("q"), q.Get("wa_id"), limit)
	if err != nil {
		h.fail(w, r, "Failed to search messages", err)
		return
	}
	h.json(w, http.StatusOK, results)
}
