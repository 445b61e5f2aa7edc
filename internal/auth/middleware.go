package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

// Claims are the session token claims issued by the auth provider.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Directory resolves the organization and user behind a credential.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// KeyValidator resolves raw API keys.
type KeyValidator interface {
	Validate(ctx context.Context, raw, ip, endpoint string) (*models.APIKey, error)
}

// Authenticator accepts either a session JWT or an API key. API keys arrive in
// the dedicated header or as a bearer token carrying APIKeyPrefix.
type Authenticator struct {
	secret     []byte
	headerName string
	dir        Directory
	keys       KeyValidator
}

func NewAuthenticator(secret, apiKeyHeader string, dir Directory, keys KeyValidator) *Authenticator {
	return &Authenticator{
		secret:     []byte(secret),
		headerName: apiKeyHeader,
		dir:        dir,
		keys:       keys,
	}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := extractBearerToken(r)
		apiKey := r.Header.Get(a.headerName)
		if apiKey == "" && LooksLikeAPIKey(bearer) {
			apiKey = bearer
		}

		var (
			ctx context.Context
			err error
		)
		switch {
		case apiKey != "":
			ctx, err = a.withAPIKey(r, apiKey)
		case bearer != "":
			ctx, err = a.withSession(r.Context(), bearer)
		default:
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			slog.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) withAPIKey(r *http.Request, raw string) (context.Context, error) {
	ctx := r.Context()
	k, err := a.keys.Validate(ctx, raw, clientIP(r), r.Method+" "+r.URL.Path)
	if err != nil {
		return nil, err
	}

	org, err := a.dir.GetByID(ctx, k.OrganizationID)
	if err != nil {
		return nil, err
	}

	ctx = tenant.WithOrganization(ctx, org)
	return tenant.WithAPIKey(ctx, k), nil
}

func (a *Authenticator) withSession(ctx context.Context, tokenStr string) (context.Context, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("parse session token: %w", models.ErrUnauthorized)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("session expired: %w", models.ErrUnauthorized)
	}

	userID, err := uuid.Parse(claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("session subject: %w", models.ErrUnauthorized)
	}

	user, err := a.dir.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	org, err := a.dir.GetByID(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}

	ctx = tenant.WithOrganization(ctx, org)
	ctx = tenant.WithUser(ctx, user)
	return context.WithValue(ctx, claimsKey, claims), nil
}

// RequireScope gates API-key callers on a scope. Session users pass; their
// access is governed by role checks instead.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k := tenant.APIKeyFromContext(r.Context()); k != nil && !HasScope(k.Scopes, scope) {
				writeError(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects session users without the admin role. API-key callers
// are governed by RequireScope.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := tenant.UserFromContext(r.Context()); u != nil && !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects API-key callers.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant.UserFromContext(r.Context()) == nil {
			writeError(w, http.StatusForbidden, "this endpoint requires a user session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
