package handlers

import (
	"context"
	"io"
	"net/http"
)

type CallEvents interface {
	Authorize(secret string) bool
	Handle(ctx context.Context, payload []byte) error
}

type CallHandler struct {
	events CallEvents
}

func NewCallHandler(events CallEvents) *CallHandler {
	return &CallHandler{events: events}
}

// VapiWebhook receives server messages from the voice platform. Only the
// end-of-call report changes state; everything else is acknowledged.
func (h *CallHandler) VapiWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.events.Authorize(r.Header.Get("X-Vapi-Secret")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 5<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if err := h.events.Handle(r.Context(), payload); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
