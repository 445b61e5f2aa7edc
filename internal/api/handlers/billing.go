package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

type BillingService interface {
	Checkout(ctx context.Context, org *models.Organization, email, planName string) (string, error)
	Portal(ctx context.Context, org *models.Organization) (string, error)
}

type StripeEvents interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type BillingHandler struct {
	svc    BillingService
	events StripeEvents
}

func NewBillingHandler(svc BillingService, events StripeEvents) *BillingHandler {
	return &BillingHandler{svc: svc, events: events}
}

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var email string
	if u := tenant.UserFromContext(r.Context()); u != nil {
		email = u.Email
	}
	url, err := h.svc.Checkout(r.Context(), tenant.FromContext(r.Context()), email, req.Plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.Portal(r.Context(), tenant.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// StripeWebhook verifies and applies a payments event. Any error makes the
// processor redeliver.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if err := h.events.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
