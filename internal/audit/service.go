// Package audit records privileged changes made through the API.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

const (
	ActionAgentCreated       = "agent.created"
	ActionAgentDeleted       = "agent.deleted"
	ActionAPIKeyCreated      = "api_key.created"
	ActionAPIKeyRevoked      = "api_key.revoked"
	ActionPhonePurchased     = "phone_number.purchased"
	ActionPhoneReleased      = "phone_number.released"
	ActionInvitationCreated  = "invitation.created"
	ActionInvitationRevoked  = "invitation.cancelled"
	ActionInvitationAccepted = "invitation.accepted"
	ActionMemberRoleChanged  = "member.role_changed"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type Entry struct {
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]any
	IPAddress    string
}

// Log writes the entry for the organization and user in ctx.
func (s *Service) Log(ctx context.Context, entry Entry) error {
	orgID := tenant.IDFromContext(ctx)
	if orgID == uuid.Nil {
		return fmt.Errorf("audit log without organization")
	}

	var userID *uuid.UUID
	if user := tenant.UserFromContext(ctx); user != nil {
		userID = &user.ID
	}

	details := []byte("{}")
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = b
	}

	var ip *netip.Addr
	if entry.IPAddress != "" {
		if parsed, err := netip.ParseAddr(entry.IPAddress); err == nil {
			ip = &parsed
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (organization_id, user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		orgID, userID, entry.Action, entry.ResourceType, entry.ResourceID, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Record is Log for callers that must not fail on audit errors.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if err := s.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit log failed", "action", entry.Action, "error", err)
	}
}
