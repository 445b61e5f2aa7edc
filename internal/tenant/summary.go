package tenant

import (
	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

// Summary is the dashboard's view of the current organization.
type Summary struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Plan               string    `json:"subscription_plan"`
	Status             string    `json:"subscription_status"`
	RemainingSeconds   int64     `json:"remaining_seconds"`
	RemainingMinutes   int64     `json:"remaining_minutes"`
	ActiveNumbers      int       `json:"active_phone_numbers"`
	PaidNumbers        int       `json:"paid_phone_numbers"`
	IncludedNumbers    int       `json:"included_phone_numbers"`
	HasBillingAccount  bool      `json:"has_billing_account"`
	ActiveSubscription bool      `json:"active_subscription"`
}

// NewSummary combines the organization row with its number usage. Remaining
// minutes are rounded down.
func NewSummary(o *models.Organization, active, paid, included int) Summary {
	return Summary{
		ID:                 o.ID,
		Name:               o.Name,
		Plan:               o.SubscriptionPlan,
		Status:             o.SubscriptionStatus,
		RemainingSeconds:   o.RemainingSeconds,
		RemainingMinutes:   o.RemainingSeconds / 60,
		ActiveNumbers:      active,
		PaidNumbers:        paid,
		IncludedNumbers:    included,
		HasBillingAccount:  o.StripeCustomerID != nil && *o.StripeCustomerID != "",
		ActiveSubscription: o.HasActiveSubscription(),
	}
}
