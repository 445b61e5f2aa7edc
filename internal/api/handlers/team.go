package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/team"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

// TeamService is implemented by team.Service.
type TeamService interface {
	Members(ctx context.Context, orgID uuid.UUID) ([]models.User, error)
	UpdateRole(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.User, error)
	Invite(ctx context.Context, orgID uuid.UUID, inviter *models.User, email, role string) (*models.TeamInvitation, error)
	ListInvitations(ctx context.Context, orgID uuid.UUID) ([]models.TeamInvitation, error)
	CancelInvitation(ctx context.Context, orgID, id uuid.UUID) error
	Lookup(ctx context.Context, token string) (*team.InvitationInfo, error)
	Accept(ctx context.Context, user *models.User, token string) (*models.TeamInvitation, error)
}

type TeamHandler struct {
	svc   TeamService
	audit Auditor
}

func NewTeamHandler(svc TeamService, auditor Auditor) *TeamHandler {
	return &TeamHandler{svc: svc, audit: auditor}
}

func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members, "count": len(members)})
}

func (h *TeamHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateRole(r.Context(), tenant.IDFromContext(r.Context()), userID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionMemberRoleChanged,
		ResourceType: "user",
		ResourceID:   &u.ID,
		Details:      map[string]any{"role": u.Role},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusOK, u)
}

func (h *TeamHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.ListInvitations(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invs, "count": len(invs)})
}

func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.Invite(r.Context(), tenant.IDFromContext(r.Context()), tenant.UserFromContext(r.Context()), req.Email, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionInvitationCreated,
		ResourceType: "invitation",
		ResourceID:   &inv.ID,
		Details:      map[string]any{"email": inv.Email, "role": inv.Role},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusCreated, inv)
}

func (h *TeamHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelInvitation(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionInvitationRevoked,
		ResourceType: "invitation",
		ResourceID:   &id,
		IPAddress:    clientIP(r),
	})
	w.WriteHeader(http.StatusNoContent)
}

// LookupInvitation is public: the invitee may not have an account yet.
func (h *TeamHandler) LookupInvitation(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *TeamHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token required"})
		return
	}
	inv, err := h.svc.Accept(r.Context(), tenant.UserFromContext(r.Context()), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := tenant.WithOrganization(r.Context(), &models.Organization{ID: inv.OrganizationID})
	h.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionInvitationAccepted,
		ResourceType: "invitation",
		ResourceID:   &inv.ID,
		Details:      map[string]any{"email": inv.Email, "role": inv.Role},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusOK, inv)
}
