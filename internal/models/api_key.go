package models

import (
	"time"

	"github.com/google/uuid"
)

type APIKey struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	KeyPrefix      string     `json:"key_prefix" db:"key_prefix"`
	LastFour       string     `json:"last_four" db:"last_four"`
	KeyHash        string     `json:"-" db:"key_hash"`
	Scopes         []string   `json:"scopes" db:"scopes"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	UsageCount     int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	LastUsedIP     *string    `json:"last_used_ip,omitempty" db:"last_used_ip"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

type TeamInvitation struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	Role           string     `json:"role" db:"role"`
	Token          string     `json:"-" db:"token"`
	Status         string     `json:"status" db:"status"`
	InvitedBy      *uuid.UUID `json:"invited_by,omitempty" db:"invited_by"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)
