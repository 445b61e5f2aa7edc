package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

type CheckoutParams struct {
	OrganizationID string
	Plan           Plan
	CustomerID     string // empty on the first checkout
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
}

// Payments is the processor surface used by the rest of the service.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (string, error)
	CancelSubscriptionItem(ctx context.Context, itemID string) error
}

type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeClient{api: sc}
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.Plan.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.OrganizationID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"organization_id": p.OrganizationID,
				"plan":            p.Plan.Name,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("organization_id", p.OrganizationID)
	params.AddMetadata("plan", p.Plan.Name)
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session: %w", err)
	}
	return sess.URL, nil
}

// AddSubscriptionItem bills one more unit of priceID on the subscription and
// returns the new item's id.
func (s *StripeClient) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (string, error) {
	params := &stripe.SubscriptionItemParams{
		Subscription:      stripe.String(subscriptionID),
		Price:             stripe.String(priceID),
		Quantity:          stripe.Int64(1),
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	item, err := s.api.SubscriptionItems.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe add subscription item: %w", err)
	}
	return item.ID, nil
}

func (s *StripeClient) CancelSubscriptionItem(ctx context.Context, itemID string) error {
	params := &stripe.SubscriptionItemParams{
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	if _, err := s.api.SubscriptionItems.Del(itemID, params); err != nil {
		return fmt.Errorf("stripe cancel subscription item: %w", err)
	}
	return nil
}
