package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogFromEnvDefaults(t *testing.T) {
	c := NewCatalogFromEnv()

	tests := []struct {
		plan   string
		amount int64
	}{
		{"starter", 1900},
		{"pro", 4900},
		{"elite", 9900},
	}
	for _, tt := range tests {
		pp, ok := c.Price(tt.plan)
		if !ok {
			t.Fatalf("expected %q to be purchasable", tt.plan)
		}
		assert.Equal(t, tt.amount, pp.Amount)
		assert.Equal(t, "GBP", pp.Currency)
		assert.Equal(t, "month", pp.Interval)
	}
}

func TestCatalogRejectsNonPurchasablePlans(t *testing.T) {
	c := NewCatalogFromEnv()

	for _, plan := range []string{"free", "enterprise", "", "FREE"} {
		if _, ok := c.Price(plan); ok {
			t.Fatalf("%q must not be purchasable", plan)
		}
	}
}

func TestCatalogNormalizesPlanNames(t *testing.T) {
	c := NewCatalogFromEnv()

	pp, ok := c.Price("  PRO ")
	if !ok {
		t.Fatalf("expected normalized lookup to succeed")
	}
	assert.Equal(t, "pro", pp.Plan)
}

func TestCatalogCurrencyAndPriceID(t *testing.T) {
	c := NewCatalog([]PlanPrice{
		{Plan: "pro", Amount: 4900, Currency: " eur ", PriceID: "price_123"},
	})

	pp, ok := c.Price("pro")
	if !ok {
		t.Fatalf("expected pro to be purchasable")
	}
	assert.Equal(t, "EUR", pp.Currency)
	assert.Equal(t, "price_123", pp.PriceID)
	assert.Equal(t, "month", pp.Interval)
}
