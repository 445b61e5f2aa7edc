package models

import (
	"time"

	"github.com/google/uuid"
)

type PhoneNumber struct {
	ID                       uuid.UUID  `json:"id" db:"id"`
	OrganizationID           uuid.UUID  `json:"organization_id" db:"organization_id"`
	AgentID                  *uuid.UUID `json:"agent_id,omitempty" db:"agent_id"`
	PhoneNumber              string     `json:"phone_number" db:"phone_number"`
	TwilioSID                string     `json:"twilio_sid" db:"twilio_sid"`
	VapiPhoneNumberID        string     `json:"vapi_phone_number_id,omitempty" db:"vapi_phone_number_id"`
	StripeSubscriptionItemID *string    `json:"-" db:"stripe_subscription_item_id"`
	Status                   string     `json:"status" db:"status"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
}

// IsPaid reports whether the number is billed as an extra line item rather
// than occupying one of the plan's included slots.
func (p *PhoneNumber) IsPaid() bool {
	return p.StripeSubscriptionItemID != nil && *p.StripeSubscriptionItemID != ""
}

const (
	PhoneStatusActive   = "active"
	PhoneStatusReleased = "released"
)
