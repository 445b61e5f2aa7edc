// Package billing wraps the payments processor: plans, checkout, the billing
// portal, per-number subscription items and subscription webhooks.
package billing

import (
	"github.com/nikhilbhutani/voiceagents/internal/config"
)

const (
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

type Plan struct {
	Name            string `json:"name"`
	PriceID         string `json:"-"`
	IncludedNumbers int    `json:"included_numbers"`
	IncludedMinutes int    `json:"included_minutes"`
}

func (p Plan) IncludedSeconds() int64 { return int64(p.IncludedMinutes) * 60 }

type Catalog struct {
	plans []Plan
}

func NewCatalog(cfg config.StripeConfig) *Catalog {
	return &Catalog{plans: []Plan{
		{Name: PlanStarter, PriceID: cfg.StarterPrice, IncludedNumbers: cfg.StarterNumbers, IncludedMinutes: cfg.StarterMinutes},
		{Name: PlanPro, PriceID: cfg.ProPrice, IncludedNumbers: cfg.ProNumbers, IncludedMinutes: cfg.ProMinutes},
		{Name: PlanBusiness, PriceID: cfg.BusinessPrice, IncludedNumbers: cfg.BusinessNumbers, IncludedMinutes: cfg.BusinessMinutes},
	}}
}

func (c *Catalog) Plans() []Plan { return c.plans }

func (c *Catalog) Lookup(name string) (Plan, bool) {
	for _, p := range c.plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// IncludedNumbers is zero for organizations without a known plan.
func (c *Catalog) IncludedNumbers(planName string) int {
	p, _ := c.Lookup(planName)
	return p.IncludedNumbers
}
