package tenant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

func TestNewSummary(t *testing.T) {
	cus, sub := "cus_1", "sub_1"
	o := &models.Organization{
		ID:                   uuid.New(),
		Name:                 "Acme",
		SubscriptionPlan:     "pro",
		SubscriptionStatus:   models.SubscriptionActive,
		RemainingSeconds:     3599,
		StripeCustomerID:     &cus,
		StripeSubscriptionID: &sub,
	}

	s := NewSummary(o, 4, 1, 3)
	assert.Equal(t, int64(59), s.RemainingMinutes)
	assert.Equal(t, 4, s.ActiveNumbers)
	assert.Equal(t, 1, s.PaidNumbers)
	assert.Equal(t, 3, s.IncludedNumbers)
	assert.True(t, s.HasBillingAccount)
	assert.True(t, s.ActiveSubscription)

	bare := NewSummary(&models.Organization{SubscriptionPlan: models.PlanNone}, 0, 0, 0)
	assert.False(t, bare.HasBillingAccount)
	assert.False(t, bare.ActiveSubscription)
}
