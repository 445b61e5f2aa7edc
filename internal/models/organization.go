package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	SubscriptionPlan     string    `json:"subscription_plan" db:"subscription_plan"`
	SubscriptionStatus   string    `json:"subscription_status" db:"subscription_status"`
	RemainingSeconds     int64     `json:"remaining_seconds" db:"remaining_seconds"`
	StripeCustomerID     *string   `json:"-" db:"stripe_customer_id"`
	StripeSubscriptionID *string   `json:"-" db:"stripe_subscription_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// HasActiveSubscription reports whether the organization is currently billed
// on a subscription that can carry extra line items.
func (o *Organization) HasActiveSubscription() bool {
	if o.StripeSubscriptionID == nil || *o.StripeSubscriptionID == "" {
		return false
	}
	return o.SubscriptionStatus == SubscriptionActive || o.SubscriptionStatus == SubscriptionTrialing
}

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Role           string    `json:"role" db:"role"`
	Email          string    `json:"email" db:"email"`
	FullName       string    `json:"full_name,omitempty" db:"full_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	PlanNone = "none"

	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
	SubscriptionIncomplete = "incomplete"
	SubscriptionInactive   = "inactive"
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCustomer
}

// SubscriptionUpdate describes a billing state change. Nil fields are left
// untouched.
type SubscriptionUpdate struct {
	CustomerID        *string
	SubscriptionID    *string
	ClearSubscription bool
	Plan              string
	Status            string
	RemainingSeconds  *int64
}
