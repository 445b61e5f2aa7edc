package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

const orgColumns = `id, name, subscription_plan, subscription_status, remaining_seconds,
	stripe_customer_id, stripe_subscription_id, created_at, updated_at`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.SubscriptionPlan, &o.SubscriptionStatus, &o.RemainingSeconds,
		&o.StripeCustomerID, &o.StripeSubscriptionID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o, err := scanOrganization(s.db.QueryRow(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func (s *Service) GetByStripeCustomer(ctx context.Context, customerID string) (*models.Organization, error) {
	o, err := scanOrganization(s.db.QueryRow(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE stripe_customer_id = $1", customerID))
	if err != nil {
		return nil, fmt.Errorf("get organization by customer: %w", err)
	}
	return o, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, organization_id, role, email, full_name, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.OrganizationID, &u.Role, &u.Email, &u.FullName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// DeductSeconds subtracts call time from the organization's remaining balance,
// never going below zero, and returns the new balance.
func (s *Service) DeductSeconds(ctx context.Context, orgID uuid.UUID, seconds int64) (int64, error) {
	var remaining int64
	err := s.db.QueryRow(ctx,
		`UPDATE organizations SET remaining_seconds = GREATEST(0, remaining_seconds - $2), updated_at = now()
		 WHERE id = $1 RETURNING remaining_seconds`,
		orgID, seconds,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("deduct seconds: %w", models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("deduct seconds: %w", err)
	}
	return remaining, nil
}

func (s *Service) UpdateSubscription(ctx context.Context, orgID uuid.UUID, u models.SubscriptionUpdate) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE organizations SET
			stripe_customer_id = COALESCE($2, stripe_customer_id),
			stripe_subscription_id = CASE WHEN $3 THEN NULL ELSE COALESCE($4, stripe_subscription_id) END,
			subscription_plan = COALESCE(NULLIF($5, ''), subscription_plan),
			subscription_status = COALESCE(NULLIF($6, ''), subscription_status),
			remaining_seconds = COALESCE($7, remaining_seconds),
			updated_at = now()
		 WHERE id = $1`,
		orgID, u.CustomerID, u.ClearSubscription, u.SubscriptionID, u.Plan, u.Status, u.RemainingSeconds,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subscription: %w", models.ErrNotFound)
	}
	return nil
}
