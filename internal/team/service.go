// Package team manages organization members and email invitations.
package team

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

const invitationTTL = 7 * 24 * time.Hour

type Service struct {
	store     Store
	mailer    Mailer
	publicURL string
	now       func() time.Time
}

// NewService builds the service. mailer may be nil, in which case invitations
// are created without sending email.
func NewService(store Store, mailer Mailer, publicURL string) *Service {
	return &Service{
		store:     store,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func (s *Service) Invite(ctx context.Context, orgID uuid.UUID, inviter *models.User, email, role string) (*models.TeamInvitation, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("invalid email address: %w", models.ErrInvalid)
	}
	email = strings.ToLower(addr.Address)
	if role == "" {
		role = models.RoleCustomer
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, models.ErrInvalid)
	}

	member, err := s.store.IsMember(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, fmt.Errorf("%s is already a member: %w", email, models.ErrConflict)
	}
	pending, err := s.store.HasPendingInvitation(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("an invitation for %s is already pending: %w", email, models.ErrConflict)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	inv := &models.TeamInvitation{
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		Status:         models.InvitationPending,
		ExpiresAt:      s.now().Add(invitationTTL),
	}
	if inviter != nil {
		inv.InvitedBy = &inviter.ID
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.send(ctx, inv)
	slog.Info("team invitation created", "organization_id", orgID, "invitation_id", inv.ID, "role", role)
	return inv, nil
}

// send is best effort: the invitation stays valid when the email fails.
func (s *Service) send(ctx context.Context, inv *models.TeamInvitation) {
	if s.mailer == nil {
		return
	}
	orgName, err := s.store.OrganizationName(ctx, inv.OrganizationID)
	if err != nil {
		slog.Warn("load organization name for invitation", "invitation_id", inv.ID, "error", err)
	}
	err = s.mailer.SendInvitation(ctx, Invite{
		To:               inv.Email,
		OrganizationName: orgName,
		Role:             inv.Role,
		AcceptURL:        s.publicURL + "/invite/" + inv.Token,
		ExpiresAt:        inv.ExpiresAt,
	})
	if err != nil {
		slog.Warn("invitation email failed", "invitation_id", inv.ID, "error", err)
	}
}

func (s *Service) ListInvitations(ctx context.Context, orgID uuid.UUID) ([]models.TeamInvitation, error) {
	return s.store.ListPendingInvitations(ctx, orgID)
}

func (s *Service) CancelInvitation(ctx context.Context, orgID, id uuid.UUID) error {
	return s.store.CancelInvitation(ctx, orgID, id)
}

// InvitationInfo is what an invitee sees before signing in.
type InvitationInfo struct {
	OrganizationName string    `json:"organization_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func (s *Service) Lookup(ctx context.Context, token string) (*InvitationInfo, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	name, err := s.store.OrganizationName(ctx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &InvitationInfo{
		OrganizationName: name,
		Email:            inv.Email,
		Role:             inv.Role,
		Status:           inv.Status,
		ExpiresAt:        inv.ExpiresAt,
	}, nil
}

// Accept moves user into the inviting organization. The invitation must be
// pending and addressed to the user's email.
func (s *Service) Accept(ctx context.Context, user *models.User, token string) (*models.TeamInvitation, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case models.InvitationPending:
	case models.InvitationExpired:
		return nil, fmt.Errorf("invitation has expired: %w", models.ErrInvalid)
	default:
		return nil, fmt.Errorf("invitation is %s: %w", inv.Status, models.ErrConflict)
	}
	if !strings.EqualFold(strings.TrimSpace(user.Email), inv.Email) {
		return nil, fmt.Errorf("invitation was sent to a different email: %w", models.ErrForbidden)
	}

	now := s.now()
	if err := s.store.AcceptInvitation(ctx, inv, user.ID, now); err != nil {
		return nil, err
	}
	inv.Status = models.InvitationAccepted
	inv.AcceptedAt = &now

	slog.Info("team invitation accepted", "organization_id", inv.OrganizationID, "user_id", user.ID, "role", inv.Role)
	return inv, nil
}

// byToken loads an invitation and lazily marks it expired.
func (s *Service) byToken(ctx context.Context, token string) (*models.TeamInvitation, error) {
	if token == "" {
		return nil, fmt.Errorf("invitation: %w", models.ErrNotFound)
	}
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvitationPending && !inv.ExpiresAt.After(s.now()) {
		if err := s.store.SetInvitationStatus(ctx, inv.ID, models.InvitationExpired); err != nil {
			slog.Warn("mark invitation expired", "invitation_id", inv.ID, "error", err)
		}
		inv.Status = models.InvitationExpired
	}
	return inv, nil
}

func (s *Service) Members(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	return s.store.ListMembers(ctx, orgID)
}

// UpdateRole changes a member's role. An organization always keeps at least
// one admin.
func (s *Service) UpdateRole(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, models.ErrInvalid)
	}
	u, err := s.store.GetMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	if u.Role == models.RoleAdmin {
		admins, err := s.store.CountAdmins(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, fmt.Errorf("cannot demote the last admin: %w", models.ErrConflict)
		}
	}
	if err := s.store.SetRole(ctx, orgID, userID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
