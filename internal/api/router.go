package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/voiceagents/internal/api/handlers"
	"github.com/nikhilbhutani/voiceagents/internal/api/middleware"
	"github.com/nikhilbhutani/voiceagents/internal/auth"
)

// Services are the constructed dependencies the routes are served by.
type Services struct {
	Auth          *auth.Authenticator
	Health        map[string]handlers.Pinger
	Audit         handlers.Auditor
	Agents        handlers.AgentService
	PhoneNumbers  handlers.PhoneNumberService
	NumberCounts  handlers.NumberCounter
	Plans         handlers.Entitlements
	Billing       handlers.BillingService
	StripeEvents  handlers.StripeEvents
	Keys          handlers.KeyService
	Team          handlers.TeamService
	Calls         handlers.CallEvents
	RateLimiter   *middleware.RateLimiter
	Origins       []string
	MaxUploadSize int64
}

type Router struct {
	mux *chi.Mux
	svc Services
}

func NewRouter(svc Services) *Router {
	return &Router{mux: chi.NewRouter(), svc: svc}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.svc.Origins))
	if rt.svc.RateLimiter != nil {
		r.Use(rt.svc.RateLimiter.Limit)
	}

	health := handlers.NewHealthHandler(rt.svc.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks authenticate with their own signatures.
	billingH := handlers.NewBillingHandler(rt.svc.Billing, rt.svc.StripeEvents)
	callH := handlers.NewCallHandler(rt.svc.Calls)
	r.Post("/webhooks/stripe", billingH.StripeWebhook)
	r.Post("/webhooks/vapi", callH.VapiWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		teamH := handlers.NewTeamHandler(rt.svc.Team, rt.svc.Audit)
		r.Get("/invitations/{token}", teamH.LookupInvitation)

		r.Group(func(r chi.Router) {
			r.Use(rt.svc.Auth.Authenticate)
			rt.authenticated(r, billingH, teamH)
		})
	})

	return r
}

func (rt *Router) authenticated(r chi.Router, billingH *handlers.BillingHandler, teamH *handlers.TeamHandler) {
	orgH := handlers.NewOrganizationHandler(rt.svc.NumberCounts, rt.svc.Plans)
	r.With(auth.RequireScope(auth.ScopeOrganizationRead)).Get("/organization", orgH.Get)

	agentH := handlers.NewAgentHandler(rt.svc.Agents, rt.svc.Audit, rt.svc.MaxUploadSize)
	r.Route("/agents", func(r chi.Router) {
		read := r.With(auth.RequireScope(auth.ScopeAgentsRead))
		write := r.With(auth.RequireScope(auth.ScopeAgentsWrite))
		read.Get("/", agentH.List)
		write.Post("/", agentH.Create)
		read.Get("/{id}", agentH.Get)
		write.Patch("/{id}", agentH.Update)
		write.Delete("/{id}", agentH.Delete)
		write.Put("/{id}/structured-output", agentH.SetStructuredOutput)
		write.Delete("/{id}/structured-output", agentH.ClearStructuredOutput)
		write.Post("/{id}/webhook/test", agentH.TestWebhook)

		r.With(auth.RequireScope(auth.ScopeDocumentsRead)).Get("/{id}/documents", agentH.ListDocuments)
		docWrite := r.With(auth.RequireScope(auth.ScopeDocumentsWrite))
		docWrite.Post("/{id}/documents", agentH.UploadDocument)
		docWrite.Delete("/{id}/documents/{fileID}", agentH.DeleteDocument)
	})

	numberH := handlers.NewPhoneNumberHandler(rt.svc.PhoneNumbers, rt.svc.Audit)
	r.Route("/phone-numbers", func(r chi.Router) {
		read := r.With(auth.RequireScope(auth.ScopePhoneNumbersRead))
		write := r.With(auth.RequireScope(auth.ScopePhoneNumbersWrite))
		read.Get("/", numberH.List)
		read.Get("/available", numberH.Available)
		write.With(auth.RequireAdmin).Post("/", numberH.Purchase)
		write.Patch("/{id}", numberH.Assign)
		write.With(auth.RequireAdmin).Delete("/{id}", numberH.Delete)
	})

	// Account management is for signed-in users only.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)

		r.Route("/billing", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/checkout", billingH.Checkout)
			r.Post("/portal", billingH.Portal)
		})

		keyH := handlers.NewAPIKeyHandler(rt.svc.Keys, rt.svc.Audit)
		r.Route("/api-keys", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", keyH.List)
			r.Post("/", keyH.Create)
			r.Delete("/{id}", keyH.Revoke)
		})

		r.Route("/team", func(r chi.Router) {
			r.Get("/members", teamH.Members)
			r.With(auth.RequireAdmin).Patch("/members/{id}", teamH.UpdateRole)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/invitations", teamH.ListInvitations)
				r.Post("/invitations", teamH.Invite)
				r.Delete("/invitations/{id}", teamH.CancelInvitation)
			})
		})

		r.Post("/invitations/accept", teamH.AcceptInvitation)
	})
}
