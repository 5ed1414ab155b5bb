package billing

import (
	"strings"

	"github.com/promptdeck/promptdeck/internal/pkg/entitlements"
	"github.com/promptdeck/promptdeck/internal/pkg/env"
)

// defaultAmounts are the list prices per paid tier in minor currency
// units of the configured billing currency.
var defaultAmounts = map[entitlements.Plan]int64{
	entitlements.PlanStarter: 1900,
	entitlements.PlanPro:     4900,
	entitlements.PlanElite:   9900,
}

// Catalog maps paid plans to their price definitions. Preconfigured
// provider price IDs are optional; a missing ID makes the provider
// provision the remote price lazily, keyed by the plan tag so repeated
// calls never create duplicate remote prices.
type Catalog struct {
	prices map[string]PlanPrice
}

// NewCatalog builds a catalog from explicit price definitions.
func NewCatalog(prices []PlanPrice) *Catalog {
	c := &Catalog{prices: make(map[string]PlanPrice, len(prices))}
	for _, p := range prices {
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if p.Interval == "" {
			p.Interval = "month"
		}
		c.prices[p.Plan] = p
	}
	return c
}

// NewCatalogFromEnv builds the catalog for all paid tiers using
// BILLING_CURRENCY and the optional STRIPE_PRICE_* overrides.
func NewCatalogFromEnv() *Catalog {
	currency := strings.ToUpper(env.GetEnv("BILLING_CURRENCY", "GBP"))
	prices := make([]PlanPrice, 0, len(entitlements.PaidPlans))
	for _, plan := range entitlements.PaidPlans {
		prices = append(prices, PlanPrice{
			Plan:     string(plan),
			Amount:   defaultAmounts[plan],
			Currency: currency,
			Interval: "month",
			PriceID:  env.GetEnv("STRIPE_PRICE_"+strings.ToUpper(string(plan)), ""),
		})
	}
	return NewCatalog(prices)
}

// Price resolves a plan to its price definition. The second return is
// false for free, unknown, or otherwise non-purchasable plans.
func (c *Catalog) Price(plan string) (PlanPrice, bool) {
	p, ok := c.prices[string(entitlements.Normalize(plan))]
	if !ok || p.Amount <= 0 {
		return PlanPrice{}, false
	}
	return p, true
}
