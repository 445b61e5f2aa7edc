package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

type NumberCounter interface {
	Counts(ctx context.Context, orgID uuid.UUID) (active, paid int, err error)
}

type Entitlements interface {
	IncludedNumbers(plan string) int
}

type OrganizationHandler struct {
	numbers NumberCounter
	plans   Entitlements
}

func NewOrganizationHandler(numbers NumberCounter, plans Entitlements) *OrganizationHandler {
	return &OrganizationHandler{numbers: numbers, plans: plans}
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org := tenant.FromContext(r.Context())
	active, paid, err := h.numbers.Counts(r.Context(), org.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant.NewSummary(org, active, paid, h.plans.IncludedNumbers(org.SubscriptionPlan)))
}
