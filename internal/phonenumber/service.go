// Package phonenumber provisions organization phone numbers and keeps the
// number of billed numbers aligned with the plan's included allotment.
package phonenumber

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/telephony"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
)

// Platform imports numbers into the voice platform.
type Platform interface {
	ImportTwilioNumber(ctx context.Context, number, accountSID, authToken, assistantID string) (*vapi.PhoneNumber, error)
	SetPhoneNumberAssistant(ctx context.Context, id, assistantID string) error
	DeletePhoneNumber(ctx context.Context, id string) error
}

// Billing creates and cancels per-number subscription items.
type Billing interface {
	AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (string, error)
	CancelSubscriptionItem(ctx context.Context, itemID string) error
}

// Entitlements maps a plan to its included number count.
type Entitlements interface {
	IncludedNumbers(plan string) int
}

// Agents resolves an agent of the organization to its assistant id.
type Agents interface {
	AssistantID(ctx context.Context, orgID, agentID uuid.UUID) (string, error)
}

type Config struct {
	Country          string
	TwilioAccountSID string
	TwilioAuthToken  string
	ExtraNumberPrice string
}

type Service struct {
	store     Store
	telephony telephony.Provider
	platform  Platform
	billing   Billing
	plans     Entitlements
	agents    Agents
	cfg       Config
}

func NewService(store Store, tel telephony.Provider, platform Platform, billing Billing,
	plans Entitlements, agents Agents, cfg Config) *Service {
	return &Service{
		store:     store,
		telephony: tel,
		platform:  platform,
		billing:   billing,
		plans:     plans,
		agents:    agents,
		cfg:       cfg,
	}
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]models.PhoneNumber, error) {
	return s.store.List(ctx, orgID)
}

func (s *Service) Counts(ctx context.Context, orgID uuid.UUID) (active, paid int, err error) {
	return s.store.Counts(ctx, orgID)
}

func (s *Service) Search(ctx context.Context, p telephony.SearchParams) ([]telephony.AvailableNumber, error) {
	if p.Country == "" {
		p.Country = s.cfg.Country
	}
	if !telephony.ValidCountry(p.Country) {
		return nil, fmt.Errorf("unknown country %q: %w", p.Country, models.ErrInvalid)
	}
	if p.AreaCode < 0 || p.AreaCode > 999 {
		return nil, fmt.Errorf("invalid area code: %w", models.ErrInvalid)
	}
	out, err := s.telephony.Search(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return out, nil
}

// Purchase buys a number for the organization. Numbers beyond the plan's
// included count are billed as an extra subscription item. Every external
// resource created before a failure is removed again, newest first.
func (s *Service) Purchase(ctx context.Context, org *models.Organization, raw string, agentID *uuid.UUID) (n *models.PhoneNumber, err error) {
	e164, err := telephony.NormalizeE164(raw, s.cfg.Country)
	if err != nil {
		return nil, err
	}

	assistantID, err := s.assistantFor(ctx, org.ID, agentID)
	if err != nil {
		return nil, err
	}

	active, _, err := s.store.Counts(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	included := s.plans.IncludedNumbers(org.SubscriptionPlan)

	var undo []func(context.Context) error
	defer func() {
		if err != nil {
			rollback(ctx, undo, "phone_number", e164)
		}
	}()

	var itemID *string
	if active >= included {
		if !org.HasActiveSubscription() {
			return nil, fmt.Errorf("plan includes %d numbers, an active subscription is required for more: %w",
				included, models.ErrForbidden)
		}
		if s.billing == nil || s.cfg.ExtraNumberPrice == "" {
			return nil, fmt.Errorf("extra numbers are not available: %w", models.ErrForbidden)
		}
		id, err := s.billing.AddSubscriptionItem(ctx, *org.StripeSubscriptionID, s.cfg.ExtraNumberPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
		itemID = &id
		undo = append(undo, func(ctx context.Context) error { return s.billing.CancelSubscriptionItem(ctx, id) })
	}

	bought, err := s.telephony.Purchase(ctx, e164)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	undo = append(undo, func(ctx context.Context) error { return s.telephony.Release(ctx, bought.SID) })

	imported, err := s.platform.ImportTwilioNumber(ctx, e164, s.cfg.TwilioAccountSID, s.cfg.TwilioAuthToken, assistantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	undo = append(undo, func(ctx context.Context) error { return s.platform.DeletePhoneNumber(ctx, imported.ID) })

	n = &models.PhoneNumber{
		OrganizationID:           org.ID,
		AgentID:                  agentID,
		PhoneNumber:              e164,
		TwilioSID:                bought.SID,
		VapiPhoneNumberID:        imported.ID,
		StripeSubscriptionItemID: itemID,
		Status:                   models.PhoneStatusActive,
	}
	if err = s.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	slog.Info("phone number purchased",
		"organization_id", org.ID,
		"phone_number_id", n.ID,
		"paid", n.IsPaid(),
	)
	return n, nil
}

// Assign binds the number to an agent, or unbinds it when agentID is nil.
func (s *Service) Assign(ctx context.Context, orgID, id uuid.UUID, agentID *uuid.UUID) (*models.PhoneNumber, error) {
	n, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	assistantID, err := s.assistantFor(ctx, orgID, agentID)
	if err != nil {
		return nil, err
	}
	if n.VapiPhoneNumberID != "" {
		if err := s.platform.SetPhoneNumberAssistant(ctx, n.VapiPhoneNumberID, assistantID); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
	}
	if err := s.store.SetAgent(ctx, orgID, id, agentID); err != nil {
		return nil, err
	}
	n.AgentID = agentID
	return n, nil
}

// Delete releases the number everywhere and reconciles billing. Only the
// telephony release is fatal; later steps are best effort.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	n, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	log := slog.With("organization_id", orgID, "phone_number_id", id)

	if n.TwilioSID != "" {
		if err := s.telephony.Release(ctx, n.TwilioSID); err != nil {
			return fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
	}
	if n.VapiPhoneNumberID != "" {
		if err := s.platform.DeletePhoneNumber(ctx, n.VapiPhoneNumberID); err != nil && !vapi.IsNotFound(err) {
			log.Warn("delete voice platform number failed", "error", err)
		}
	}

	s.Reconcile(ctx, orgID, n)

	if err := s.store.Release(ctx, orgID, id); err != nil {
		return err
	}
	log.Info("phone number deleted", "paid", n.IsPaid())
	return nil
}

// Reconcile keeps billed numbers at max(0, active - included) after deleted
// leaves the organization. A paid number just stops being billed. Removing
// an included number frees a slot, so one other paid number is moved into it.
func (s *Service) Reconcile(ctx context.Context, orgID uuid.UUID, deleted *models.PhoneNumber) {
	log := slog.With("organization_id", orgID, "phone_number_id", deleted.ID)
	if s.billing == nil {
		return
	}

	if deleted.IsPaid() {
		if err := s.billing.CancelSubscriptionItem(ctx, *deleted.StripeSubscriptionItemID); err != nil {
			log.Warn("cancel subscription item failed", "error", err)
		}
		return
	}

	other, err := s.store.FindPaid(ctx, orgID, deleted.ID)
	if err != nil {
		log.Warn("find paid number failed", "error", err)
		return
	}
	if other == nil {
		return
	}

	if err := s.billing.CancelSubscriptionItem(ctx, *other.StripeSubscriptionItemID); err != nil {
		log.Warn("cancel subscription item failed", "promoted_id", other.ID, "error", err)
		return
	}
	if err := s.store.ClearSubscriptionItem(ctx, other.ID); err != nil {
		log.Warn("clear subscription item failed", "promoted_id", other.ID, "error", err)
		return
	}
	log.Info("paid number moved into included slot", "promoted_id", other.ID)
}

func (s *Service) assistantFor(ctx context.Context, orgID uuid.UUID, agentID *uuid.UUID) (string, error) {
	if agentID == nil {
		return "", nil
	}
	return s.agents.AssistantID(ctx, orgID, *agentID)
}

func rollback(ctx context.Context, undo []func(context.Context) error, what, ref string) {
	ctx = context.WithoutCancel(ctx)
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			slog.Warn("rollback step failed", "resource", what, "ref", ref, "step", i, "error", err)
		}
	}
}
