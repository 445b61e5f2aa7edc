package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/voiceagents/internal/database"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

type Store interface {
	CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error
	HasPendingInvitation(ctx context.Context, orgID uuid.UUID, email string) (bool, error)
	ListPendingInvitations(ctx context.Context, orgID uuid.UUID) ([]models.TeamInvitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*models.TeamInvitation, error)
	SetInvitationStatus(ctx context.Context, id uuid.UUID, status string) error
	CancelInvitation(ctx context.Context, orgID, id uuid.UUID) error
	// AcceptInvitation moves the user into the invitation's organization and
	// marks the invitation accepted in one transaction.
	AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, userID uuid.UUID, at time.Time) error

	OrganizationName(ctx context.Context, orgID uuid.UUID) (string, error)
	IsMember(ctx context.Context, orgID uuid.UUID, email string) (bool, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.User, error)
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.User, error)
	CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error)
	SetRole(ctx context.Context, orgID, userID uuid.UUID, role string) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const invitationColumns = `id, organization_id, email, role, token, status, invited_by, expires_at, accepted_at, created_at`

func scanInvitation(row pgx.Row) (*models.TeamInvitation, error) {
	var inv models.TeamInvitation
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token, &inv.Status,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PGStore) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO team_invitations (organization_id, email, role, token, status, invited_by, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.Status, inv.InvitedBy, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

func (s *PGStore) HasPendingInvitation(ctx context.Context, orgID uuid.UUID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_invitations
		 WHERE organization_id = $1 AND lower(email) = lower($2) AND status = 'pending' AND expires_at > now())`,
		orgID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return exists, nil
}

func (s *PGStore) ListPendingInvitations(ctx context.Context, orgID uuid.UUID) ([]models.TeamInvitation, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+invitationColumns+` FROM team_invitations
		 WHERE organization_id = $1 AND status = 'pending' ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := []models.TeamInvitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *PGStore) GetInvitationByToken(ctx context.Context, token string) (*models.TeamInvitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx,
		"SELECT "+invitationColumns+" FROM team_invitations WHERE token = $1", token))
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (s *PGStore) SetInvitationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx, "UPDATE team_invitations SET status = $2 WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("set invitation status: %w", err)
	}
	return nil
}

func (s *PGStore) CancelInvitation(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE team_invitations SET status = 'cancelled'
		 WHERE organization_id = $1 AND id = $2 AND status = 'pending'`, orgID, id)
	if err != nil {
		return fmt.Errorf("cancel invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel invitation: %w", models.ErrNotFound)
	}
	return nil
}

func (s *PGStore) AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, userID uuid.UUID, at time.Time) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE team_invitations SET status = 'accepted', accepted_at = $2
			 WHERE id = $1 AND status = 'pending'`, inv.ID, at)
		if err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("invitation is no longer pending: %w", models.ErrConflict)
		}
		tag, err = tx.Exec(ctx,
			"UPDATE users SET organization_id = $2, role = $3 WHERE id = $1", userID, inv.OrganizationID, inv.Role)
		if err != nil {
			return fmt.Errorf("move user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("move user: %w", models.ErrNotFound)
		}
		return nil
	})
}

func (s *PGStore) OrganizationName(ctx context.Context, orgID uuid.UUID) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, "SELECT name FROM organizations WHERE id = $1", orgID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("get organization name: %w", models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get organization name: %w", err)
	}
	return name, nil
}

func (s *PGStore) IsMember(ctx context.Context, orgID uuid.UUID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE organization_id = $1 AND lower(email) = lower($2))",
		orgID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

const userColumns = "id, organization_id, role, email, full_name, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Role, &u.Email, &u.FullName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE organization_id = $1 ORDER BY created_at", orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PGStore) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE organization_id = $1 AND id = $2", orgID, userID))
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return u, nil
}

func (s *PGStore) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT count(*) FROM users WHERE organization_id = $1 AND role = 'admin'", orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (s *PGStore) SetRole(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE users SET role = $3 WHERE organization_id = $1 AND id = $2", orgID, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set role: %w", models.ErrNotFound)
	}
	return nil
}
