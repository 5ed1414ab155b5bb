package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// stripeStub serves just enough of the Stripe API to exercise price
// provisioning against a local server.
type stripeStub struct {
	mu            sync.Mutex
	calls         []string
	searchQuery   string
	searchResults string // JSON array returned by the price search
}

func (s *stripeStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)
	if r.URL.Path == "/v1/prices/search" {
		s.searchQuery = r.URL.Query().Get("query")
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/prices/search":
		w.Write([]byte(`{"object":"search_result","url":"/v1/prices/search","has_more":false,"data":` + s.searchResults + `}`))
	case "/v1/products":
		w.Write([]byte(`{"id":"prod_new","object":"product"}`))
	case "/v1/prices":
		w.Write([]byte(`{"id":"price_new","object":"price"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}
}

func (s *stripeStub) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func withStripeStub(t *testing.T, stub *stripeStub) {
	t.Helper()
	srv := httptest.NewServer(stub)
	orig := stripe.GetBackend(stripe.APIBackend)
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(srv.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	}))
	t.Cleanup(func() {
		stripe.SetBackend(stripe.APIBackend, orig)
		srv.Close()
	})
}

func TestEnsurePricePreconfiguredIDSkipsRemoteCalls(t *testing.T) {
	stub := &stripeStub{}
	withStripeStub(t, stub)
	p := testStripeProvider()

	id, err := p.ensurePrice(context.Background(), PlanPrice{
		Plan: "pro", Amount: 4900, Currency: "GBP", Interval: "month", PriceID: "price_cfg",
	})
	require.NoError(t, err)
	assert.Equal(t, "price_cfg", id)
	assert.Empty(t, stub.requests())
}

func TestEnsurePriceReusesProvisionedPrice(t *testing.T) {
	stub := &stripeStub{searchResults: `[{"id":"price_existing","object":"price"}]`}
	withStripeStub(t, stub)
	p := testStripeProvider()

	id, err := p.ensurePrice(context.Background(), PlanPrice{
		Plan: "pro", Amount: 4900, Currency: "GBP", Interval: "month",
	})
	require.NoError(t, err)
	assert.Equal(t, "price_existing", id)

	// The plan tag lookup must find the existing price and no product or
	// price creation may happen.
	assert.Equal(t, []string{"GET /v1/prices/search"}, stub.requests())
	assert.Contains(t, stub.searchQuery, "metadata['plan']:'pro'")
}

func TestEnsurePriceProvisionsMissingPrice(t *testing.T) {
	stub := &stripeStub{searchResults: `[]`}
	withStripeStub(t, stub)
	p := testStripeProvider()

	id, err := p.ensurePrice(context.Background(), PlanPrice{
		Plan: "elite", Amount: 9900, Currency: "GBP", Interval: "month",
	})
	require.NoError(t, err)
	assert.Equal(t, "price_new", id)
	assert.Equal(t, []string{
		"GET /v1/prices/search",
		"POST /v1/products",
		"POST /v1/prices",
	}, stub.requests())
}
