package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceagents/internal/api/handlers"
	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/auth"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/team"
)

const jwtSecret = "router-test-secret"

type directory struct {
	org   *models.Organization
	users map[uuid.UUID]*models.User
}

func (d *directory) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	if id != d.org.ID {
		return nil, models.ErrNotFound
	}
	return d.org, nil
}

func (d *directory) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type staticKeys struct {
	raw string
	key *models.APIKey
}

func (k staticKeys) Validate(_ context.Context, raw, _, _ string) (*models.APIKey, error) {
	if raw != k.raw {
		return nil, models.ErrUnauthorized
	}
	return k.key, nil
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Entry) {}

type stubAgents struct{ handlers.AgentService }

func (stubAgents) List(context.Context, uuid.UUID) ([]models.Agent, error) {
	return []models.Agent{{ID: uuid.New(), Name: "Front desk"}}, nil
}

type stubTeam struct{ handlers.TeamService }

func (stubTeam) Lookup(context.Context, string) (*team.InvitationInfo, error) {
	return &team.InvitationInfo{OrganizationName: "Acme", Status: models.InvitationPending}, nil
}

func (stubTeam) Members(context.Context, uuid.UUID) ([]models.User, error) { return nil, nil }

type stubKeys struct{ handlers.KeyService }

func (stubKeys) List(context.Context, uuid.UUID) ([]models.APIKey, error) { return nil, nil }

type routerFixture struct {
	handler  http.Handler
	admin    *models.User
	customer *models.User
	apiKey   string
}

func newRouterFixture(t *testing.T, scopes ...string) *routerFixture {
	t.Helper()
	org := &models.Organization{ID: uuid.New(), Name: "Acme"}
	admin := &models.User{ID: uuid.New(), OrganizationID: org.ID, Role: models.RoleAdmin}
	customer := &models.User{ID: uuid.New(), OrganizationID: org.ID, Role: models.RoleCustomer}
	dir := &directory{org: org, users: map[uuid.UUID]*models.User{admin.ID: admin, customer.ID: customer}}

	raw := auth.APIKeyPrefix + strings.Repeat("a", 40)
	keys := staticKeys{raw: raw, key: &models.APIKey{ID: uuid.New(), OrganizationID: org.ID, Scopes: scopes, IsActive: true}}

	rt := NewRouter(Services{
		Auth:   auth.NewAuthenticator(jwtSecret, "X-API-Key", dir, keys),
		Health: map[string]handlers.Pinger{},
		Audit:  nopAuditor{},
		Agents: stubAgents{},
		Team:   stubTeam{},
		Keys:   stubKeys{},
	})
	return &routerFixture{handler: rt.Setup(), admin: admin, customer: customer, apiKey: raw}
}

func (f *routerFixture) do(t *testing.T, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, u *models.User) map[string]string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Sub:              u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + s}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", nil).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voiceagents_http_requests_total")

	rec = f.do(t, http.MethodGet, "/api/v1/invitations/tok_1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")
}

func TestRouter_RequiresCredentials(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/agents", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/agents",
		map[string]string{"Authorization": "Bearer not-a-jwt"}).Code)
}

func TestRouter_APIKeyScopes(t *testing.T) {
	f := newRouterFixture(t, auth.ScopeAgentsRead)
	key := map[string]string{"X-API-Key": f.apiKey}

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/agents", key).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/phone-numbers", key).Code)
	// account management is closed to keys whatever their scopes
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/team/members", key).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/api-keys", key).Code)
}

func TestRouter_SessionRoles(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/agents", bearer(t, f.customer)).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/team/members", bearer(t, f.customer)).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/api-keys", bearer(t, f.customer)).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/api-keys", bearer(t, f.admin)).Code)
}
