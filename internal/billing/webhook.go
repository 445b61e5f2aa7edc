package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// OrgStore reads and updates the billing state of organizations.
type OrgStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*models.Organization, error)
	UpdateSubscription(ctx context.Context, orgID uuid.UUID, u models.SubscriptionUpdate) error
}

// Deduper remembers processed event ids.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type WebhookProcessor struct {
	secret  string
	catalog *Catalog
	orgs    OrgStore
	dedupe  Deduper
	ttl     time.Duration
}

func NewWebhookProcessor(secret string, catalog *Catalog, orgs OrgStore, dedupe Deduper, ttl time.Duration) *WebhookProcessor {
	return &WebhookProcessor{
		secret:  secret,
		catalog: catalog,
		orgs:    orgs,
		dedupe:  dedupe,
		ttl:     ttl,
	}
}

// Handle verifies and applies one webhook delivery. Deliveries of an event
// that was already applied are acknowledged without side effects.
func (p *WebhookProcessor) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("verify stripe signature: %w", models.ErrInvalid)
	}
	log := slog.With("event_id", event.ID, "event_type", event.Type)

	key := "stripe:event:" + event.ID
	if p.dedupe != nil {
		fresh, err := p.dedupe.Claim(ctx, key, p.ttl)
		switch {
		case err != nil:
			log.Warn("event dedupe unavailable, processing anyway", "error", err)
		case !fresh:
			log.Info("duplicate stripe event ignored")
			return nil
		}
	}

	if err := p.apply(ctx, event); err != nil {
		if p.dedupe != nil {
			if rerr := p.dedupe.Release(ctx, key); rerr != nil {
				log.Warn("release event claim failed", "error", rerr)
			}
		}
		return err
	}
	return nil
}

func (p *WebhookProcessor) apply(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return p.checkoutCompleted(ctx, &sess)

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		_, renewed := event.Data.PreviousAttributes["current_period_start"]
		return p.subscriptionChanged(ctx, &sub, renewed)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return p.subscriptionDeleted(ctx, &sub)

	default:
		slog.Debug("unhandled stripe event", "event_type", event.Type)
		return nil
	}
}

func (p *WebhookProcessor) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	ref := sess.ClientReferenceID
	if ref == "" {
		ref = sess.Metadata["organization_id"]
	}
	orgID, err := uuid.Parse(ref)
	if err != nil {
		slog.Warn("checkout session without organization reference", "session_id", sess.ID)
		return nil
	}
	if sess.Customer == nil || sess.Subscription == nil {
		slog.Warn("checkout session without subscription", "session_id", sess.ID, "organization_id", orgID)
		return nil
	}

	u := models.SubscriptionUpdate{
		CustomerID:     &sess.Customer.ID,
		SubscriptionID: &sess.Subscription.ID,
		Status:         models.SubscriptionActive,
	}
	if plan, ok := p.catalog.Lookup(sess.Metadata["plan"]); ok {
		secs := plan.IncludedSeconds()
		u.Plan = plan.Name
		u.RemainingSeconds = &secs
	}
	if err := p.orgs.UpdateSubscription(ctx, orgID, u); err != nil {
		return fmt.Errorf("apply checkout: %w", err)
	}
	slog.Info("checkout completed", "organization_id", orgID, "plan", u.Plan)
	return nil
}

func (p *WebhookProcessor) subscriptionChanged(ctx context.Context, sub *stripe.Subscription, renewed bool) error {
	org, err := p.findOrganization(ctx, sub)
	if err != nil {
		return err
	}
	if org == nil {
		slog.Warn("subscription for unknown organization", "subscription_id", sub.ID)
		return nil
	}

	u := models.SubscriptionUpdate{
		SubscriptionID: &sub.ID,
		Status:         string(sub.Status),
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		u.CustomerID = &sub.Customer.ID
	}
	if plan, ok := p.planOf(sub); ok {
		u.Plan = plan.Name
		// minutes are refilled on plan change and on every new billing period
		if plan.Name != org.SubscriptionPlan || renewed {
			secs := plan.IncludedSeconds()
			u.RemainingSeconds = &secs
		}
	}
	if err := p.orgs.UpdateSubscription(ctx, org.ID, u); err != nil {
		return fmt.Errorf("apply subscription update: %w", err)
	}
	slog.Info("subscription updated", "organization_id", org.ID, "status", u.Status, "plan", u.Plan)
	return nil
}

func (p *WebhookProcessor) subscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	org, err := p.findOrganization(ctx, sub)
	if err != nil {
		return err
	}
	if org == nil {
		return nil
	}
	if org.StripeSubscriptionID != nil && *org.StripeSubscriptionID != sub.ID {
		slog.Info("ignoring deletion of a superseded subscription", "organization_id", org.ID, "subscription_id", sub.ID)
		return nil
	}

	zero := int64(0)
	u := models.SubscriptionUpdate{
		ClearSubscription: true,
		Plan:              models.PlanNone,
		Status:            models.SubscriptionCanceled,
		RemainingSeconds:  &zero,
	}
	if err := p.orgs.UpdateSubscription(ctx, org.ID, u); err != nil {
		return fmt.Errorf("apply subscription deletion: %w", err)
	}
	slog.Info("subscription cancelled", "organization_id", org.ID)
	return nil
}

// findOrganization resolves by customer id first, then by the organization
// id stamped into the subscription metadata at checkout.
func (p *WebhookProcessor) findOrganization(ctx context.Context, sub *stripe.Subscription) (*models.Organization, error) {
	if sub.Customer != nil && sub.Customer.ID != "" {
		org, err := p.orgs.GetByStripeCustomer(ctx, sub.Customer.ID)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	id, err := uuid.Parse(sub.Metadata["organization_id"])
	if err != nil {
		return nil, nil
	}
	org, err := p.orgs.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return org, err
}

func (p *WebhookProcessor) planOf(sub *stripe.Subscription) (Plan, bool) {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if plan, ok := p.catalog.ByPriceID(item.Price.ID); ok {
				return plan, true
			}
		}
	}
	return p.catalog.Lookup(sub.Metadata["plan"])
}
