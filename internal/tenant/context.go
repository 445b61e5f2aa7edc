package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

type contextKey string

const (
	orgKey    contextKey = "organization"
	userKey   contextKey = "user"
	apiKeyKey contextKey = "api_key"
)

func WithOrganization(ctx context.Context, o *models.Organization) context.Context {
	return context.WithValue(ctx, orgKey, o)
}

func FromContext(ctx context.Context) *models.Organization {
	o, _ := ctx.Value(orgKey).(*models.Organization)
	return o
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if o := FromContext(ctx); o != nil {
		return o.ID
	}
	return uuid.Nil
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the session user, or nil when the request was
// authenticated with an API key.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func WithAPIKey(ctx context.Context, k *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, k)
}

func APIKeyFromContext(ctx context.Context) *models.APIKey {
	k, _ := ctx.Value(apiKeyKey).(*models.APIKey)
	return k
}
