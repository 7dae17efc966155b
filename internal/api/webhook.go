package api

import (
	"io"
	"net/http"

	"github.com/matheus3301/wachat/internal/wa"
	"go.uber.org/zap"
)

// Webhook answers POST /api/webhook. The body is one WhatsApp Business
// webhook payload or an array of them. Stored changes reach connected
// clients through the hub relay.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.errorJSON(w, http.StatusRequestEntityTooLarge, "Payload too large", err)
		return
	}
	items, err := wa.ParseBatch(raw)
	if err != nil {
		h.logger.Warn("rejected webhook payload", zap.Int("bytes", len(raw)), zap.Error(err))
		h.errorJSON(w, http.StatusBadRequest, "Invalid webhook payload", err)
		return
	}
	sum, err := h.engine.IngestBatch(r.Context(), items)
	if err != nil {
		h.fail(w, r, "Failed to ingest webhook payload", err)
		return
	}
	status := http.StatusOK
	if sum.MessagesCreated > 0 {
		status = http.StatusCreated
	}
	h.json(w, status, sum)
}
