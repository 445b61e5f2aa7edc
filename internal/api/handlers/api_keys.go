package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/auth"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

// KeyService is implemented by auth.KeyService.
type KeyService interface {
	Create(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, req auth.CreateKeyRequest) (*auth.CreatedKey, error)
	List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error)
	Revoke(ctx context.Context, orgID, id uuid.UUID) error
}

type APIKeyHandler struct {
	svc   KeyService
	audit Auditor
}

func NewAPIKeyHandler(svc KeyService, auditor Auditor) *APIKeyHandler {
	return &APIKeyHandler{svc: svc, audit: auditor}
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys, "count": len(keys)})
}

// Create returns the raw key; it cannot be retrieved again.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var createdBy *uuid.UUID
	if u := tenant.UserFromContext(r.Context()); u != nil {
		createdBy = &u.ID
	}

	created, err := h.svc.Create(r.Context(), tenant.IDFromContext(r.Context()), createdBy, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionAPIKeyCreated,
		ResourceType: "api_key",
		ResourceID:   &created.Key.ID,
		Details:      map[string]any{"name": created.Key.Name, "scopes": created.Key.Scopes},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Revoke(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionAPIKeyRevoked,
		ResourceType: "api_key",
		ResourceID:   &id,
		IPAddress:    clientIP(r),
	})
	w.WriteHeader(http.StatusNoContent)
}
