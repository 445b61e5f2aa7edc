package phonenumber

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

type Store interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.PhoneNumber, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.PhoneNumber, error)
	Counts(ctx context.Context, orgID uuid.UUID) (active, paid int, err error)
	Insert(ctx context.Context, n *models.PhoneNumber) error
	SetAgent(ctx context.Context, orgID, id uuid.UUID, agentID *uuid.UUID) error
	Release(ctx context.Context, orgID, id uuid.UUID) error
	// FindPaid returns one other active paid number, or nil. No ordering is
	// guaranteed.
	FindPaid(ctx context.Context, orgID, excludeID uuid.UUID) (*models.PhoneNumber, error)
	ClearSubscriptionItem(ctx context.Context, id uuid.UUID) error
}

const numberColumns = `id, organization_id, agent_id, phone_number, twilio_sid, vapi_phone_number_id,
	stripe_subscription_item_id, status, created_at`

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func scanNumber(row pgx.Row) (*models.PhoneNumber, error) {
	var n models.PhoneNumber
	err := row.Scan(&n.ID, &n.OrganizationID, &n.AgentID, &n.PhoneNumber, &n.TwilioSID, &n.VapiPhoneNumberID,
		&n.StripeSubscriptionItemID, &n.Status, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *PGStore) List(ctx context.Context, orgID uuid.UUID) ([]models.PhoneNumber, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+numberColumns+" FROM phone_numbers WHERE organization_id = $1 AND status = 'active' ORDER BY created_at",
		orgID)
	if err != nil {
		return nil, fmt.Errorf("list phone numbers: %w", err)
	}
	defer rows.Close()

	var out []models.PhoneNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan phone number: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, orgID, id uuid.UUID) (*models.PhoneNumber, error) {
	n, err := scanNumber(s.db.QueryRow(ctx,
		"SELECT "+numberColumns+" FROM phone_numbers WHERE id = $1 AND organization_id = $2 AND status = 'active'",
		id, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get phone number: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get phone number: %w", err)
	}
	return n, nil
}

func (s *PGStore) Counts(ctx context.Context, orgID uuid.UUID) (int, int, error) {
	var active, paid int
	err := s.db.QueryRow(ctx,
		`SELECT count(*), count(stripe_subscription_item_id)
		 FROM phone_numbers WHERE organization_id = $1 AND status = 'active'`, orgID,
	).Scan(&active, &paid)
	if err != nil {
		return 0, 0, fmt.Errorf("count phone numbers: %w", err)
	}
	return active, paid, nil
}

func (s *PGStore) Insert(ctx context.Context, n *models.PhoneNumber) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO phone_numbers (organization_id, agent_id, phone_number, twilio_sid, vapi_phone_number_id,
			stripe_subscription_item_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		n.OrganizationID, n.AgentID, n.PhoneNumber, n.TwilioSID, n.VapiPhoneNumberID, n.StripeSubscriptionItemID, n.Status,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert phone number: %w", err)
	}
	return nil
}

func (s *PGStore) SetAgent(ctx context.Context, orgID, id uuid.UUID, agentID *uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE phone_numbers SET agent_id = $3 WHERE id = $1 AND organization_id = $2 AND status = 'active'",
		id, orgID, agentID)
	if err != nil {
		return fmt.Errorf("assign phone number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assign phone number: %w", models.ErrNotFound)
	}
	return nil
}

// Release keeps the row for history but takes it out of every count.
func (s *PGStore) Release(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE phone_numbers SET status = 'released', agent_id = NULL, stripe_subscription_item_id = NULL
		 WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("release phone number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release phone number: %w", models.ErrNotFound)
	}
	return nil
}

func (s *PGStore) FindPaid(ctx context.Context, orgID, excludeID uuid.UUID) (*models.PhoneNumber, error) {
	n, err := scanNumber(s.db.QueryRow(ctx,
		"SELECT "+numberColumns+` FROM phone_numbers
		 WHERE organization_id = $1 AND id <> $2 AND status = 'active' AND stripe_subscription_item_id IS NOT NULL
		 LIMIT 1`, orgID, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find paid phone number: %w", err)
	}
	return n, nil
}

func (s *PGStore) ClearSubscriptionItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		"UPDATE phone_numbers SET stripe_subscription_item_id = NULL WHERE id = $1", id); err != nil {
		return fmt.Errorf("clear subscription item: %w", err)
	}
	return nil
}
