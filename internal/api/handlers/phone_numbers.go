package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/telephony"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

// PhoneNumberService is implemented by phonenumber.Service.
type PhoneNumberService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.PhoneNumber, error)
	Search(ctx context.Context, p telephony.SearchParams) ([]telephony.AvailableNumber, error)
	Purchase(ctx context.Context, org *models.Organization, raw string, agentID *uuid.UUID) (*models.PhoneNumber, error)
	Assign(ctx context.Context, orgID, id uuid.UUID, agentID *uuid.UUID) (*models.PhoneNumber, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type PhoneNumberHandler struct {
	svc   PhoneNumberService
	audit Auditor
}

func NewPhoneNumberHandler(svc PhoneNumberService, auditor Auditor) *PhoneNumberHandler {
	return &PhoneNumberHandler{svc: svc, audit: auditor}
}

func (h *PhoneNumberHandler) List(w http.ResponseWriter, r *http.Request) {
	numbers, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone_numbers": numbers, "count": len(numbers)})
}

func (h *PhoneNumberHandler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := telephony.SearchParams{
		Country:  q.Get("country"),
		Contains: q.Get("contains"),
		Limit:    20,
	}
	if v := q.Get("area_code"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "area_code must be numeric"})
			return
		}
		p.AreaCode = n
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			p.Limit = n
		}
	}

	numbers, err := h.svc.Search(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": numbers, "count": len(numbers)})
}

func (h *PhoneNumberHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string     `json:"phone_number"`
		AgentID     *uuid.UUID `json:"agent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone_number required"})
		return
	}

	n, err := h.svc.Purchase(r.Context(), tenant.FromContext(r.Context()), req.PhoneNumber, req.AgentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionPhonePurchased,
		ResourceType: "phone_number",
		ResourceID:   &n.ID,
		Details:      map[string]any{"phone_number": n.PhoneNumber, "paid": n.IsPaid()},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusCreated, n)
}

func (h *PhoneNumberHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		AgentID *uuid.UUID `json:"agent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.Assign(r.Context(), tenant.IDFromContext(r.Context()), id, req.AgentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *PhoneNumberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionPhoneReleased,
		ResourceType: "phone_number",
		ResourceID:   &id,
		IPAddress:    clientIP(r),
	})
	w.WriteHeader(http.StatusNoContent)
}
