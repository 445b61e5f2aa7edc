package billing

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

type Service struct {
	catalog   *Catalog
	payments  Payments
	publicURL string
}

func NewService(catalog *Catalog, payments Payments, publicURL string) *Service {
	return &Service{catalog: catalog, payments: payments, publicURL: publicURL}
}

func (s *Service) Catalog() *Catalog { return s.catalog }

// Checkout starts a subscription checkout for the organization and returns
// the hosted page URL.
func (s *Service) Checkout(ctx context.Context, org *models.Organization, email, planName string) (string, error) {
	if s.payments == nil {
		return "", fmt.Errorf("billing is not configured: %w", models.ErrUpstream)
	}
	plan, ok := s.catalog.Lookup(planName)
	if !ok || plan.PriceID == "" {
		return "", fmt.Errorf("unknown plan %q: %w", planName, models.ErrInvalid)
	}
	if org.HasActiveSubscription() {
		return "", fmt.Errorf("organization already has an active subscription, use the billing portal: %w", models.ErrConflict)
	}

	p := CheckoutParams{
		OrganizationID: org.ID.String(),
		Plan:           plan,
		CustomerEmail:  email,
		SuccessURL:     s.publicURL + "/billing?checkout=success",
		CancelURL:      s.publicURL + "/billing?checkout=cancelled",
	}
	if org.StripeCustomerID != nil {
		p.CustomerID = *org.StripeCustomerID
	}

	url, err := s.payments.CreateCheckoutSession(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return url, nil
}

func (s *Service) Portal(ctx context.Context, org *models.Organization) (string, error) {
	if s.payments == nil {
		return "", fmt.Errorf("billing is not configured: %w", models.ErrUpstream)
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		return "", fmt.Errorf("organization has no billing account: %w", models.ErrInvalid)
	}
	url, err := s.payments.CreatePortalSession(ctx, *org.StripeCustomerID, s.publicURL+"/billing")
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return url, nil
}
