package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/promptdeck/promptdeck/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signStripePayload builds a Stripe-Signature header the way Stripe's
// backend does: v1 is the hex HMAC-SHA256 of "<timestamp>.<payload>".
func signStripePayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func testStripeProvider() *StripeProvider {
	return NewStripeProvider("sk_test_123", testWebhookSecret, NewCatalogFromEnv())
}

func stripeEventPayload(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": "2025-03-31",
		"type": %q,
		"data": {"object": %s}
	}`, id, eventType, object))
}

func TestVerifyEventRejectsBadSignatures(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_1", "invoice.paid", `{"id":"in_1"}`)

	tests := []struct {
		name      string
		signature string
	}{
		{"empty header", ""},
		{"garbage header", "t=abc,v1=def"},
		{"wrong secret", signStripePayload(payload, "whsec_other", time.Now())},
		{"stale timestamp", signStripePayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.VerifyEvent(payload, tt.signature)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyEventRejectsTamperedPayload(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_1", "invoice.paid", `{"id":"in_1","amount_paid":4900}`)
	sig := signStripePayload(payload, testWebhookSecret, time.Now())

	tampered := stripeEventPayload("evt_1", "invoice.paid", `{"id":"in_1","amount_paid":1}`)
	_, err := p.VerifyEvent(tampered, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyEventCheckoutCompleted(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_1", "checkout.session.completed", `{
		"id": "cs_123",
		"mode": "subscription",
		"customer": "cus_123",
		"subscription": "sub_123",
		"invoice": "in_123",
		"amount_total": 4900,
		"currency": "gbp",
		"client_reference_id": "7",
		"metadata": {"user_id": "7", "plan": "pro"}
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, models.BillingProviderStripe, ev.Provider)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "cs_123", ev.SessionID)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, "in_123", ev.PaymentID)
	assert.Equal(t, uint(7), ev.UserID)
	assert.Equal(t, "pro", ev.Plan)
	assert.Equal(t, int64(4900), ev.Amount)
	assert.Equal(t, "GBP", ev.Currency)
}

func TestVerifyEventCheckoutFallsBackToClientReference(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_1", "checkout.session.completed", `{
		"id": "cs_123",
		"subscription": "sub_123",
		"client_reference_id": "42",
		"metadata": {"plan": "starter"}
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint(42), ev.UserID)
}

func TestVerifyEventInvoicePaymentFailed(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_2", "invoice.payment_failed", `{
		"id": "in_456",
		"customer": "cus_123",
		"subscription": "sub_123",
		"amount_due": 4900,
		"currency": "gbp"
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "in_456", ev.PaymentID)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, int64(4900), ev.Amount)
}

func TestVerifyEventInvoiceSubscriptionUnderParent(t *testing.T) {
	p := testStripeProvider()
	// Newer API versions carry the subscription linkage under parent.
	payload := stripeEventPayload("evt_2", "invoice.payment_succeeded", `{
		"id": "in_456",
		"amount_paid": 4900,
		"currency": "gbp",
		"parent": {"subscription_details": {"subscription": "sub_123"}}
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
}

func TestVerifyEventSubscriptionDeleted(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_3", "customer.subscription.deleted", `{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "canceled",
		"metadata": {"user_id": "7", "plan": "pro"}
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionCanceled, ev.Type)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, models.SubscriptionStatusCanceled, ev.Status)
	assert.Equal(t, uint(7), ev.UserID)
}

func TestVerifyEventSubscriptionUpdatedPeriodEnd(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_3", "customer.subscription.updated", `{
		"id": "sub_123",
		"status": "active",
		"cancel_at_period_end": true,
		"current_period_end": 1790000000
	}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionUpdated, ev.Type)
	assert.True(t, ev.CancelAtPeriodEnd)
	require.NotNil(t, ev.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1790000000, 0).UTC(), *ev.CurrentPeriodEnd)
}

func TestVerifyEventUnrecognizedType(t *testing.T) {
	p := testStripeProvider()
	payload := stripeEventPayload("evt_4", "customer.created", `{"id":"cus_123"}`)

	ev, err := p.VerifyEvent(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Type)
	assert.Equal(t, "customer.created", ev.ProviderType)
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"active", models.SubscriptionStatusActive},
		{"trialing", models.SubscriptionStatusActive},
		{"past_due", models.SubscriptionStatusPastDue},
		{"unpaid", models.SubscriptionStatusPastDue},
		{"paused", models.SubscriptionStatusPastDue},
		{"canceled", models.SubscriptionStatusCanceled},
		{"incomplete_expired", models.SubscriptionStatusCanceled},
		{"incomplete", models.SubscriptionStatusIncomplete},
		{"something_new", models.SubscriptionStatusIncomplete},
		{" Active ", models.SubscriptionStatusActive},
	}
	for _, tt := range tests {
		if got := mapStripeStatus(tt.in); got != tt.want {
			t.Errorf("mapStripeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUserIDFromMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		fallback string
		want     uint
	}{
		{"from metadata", map[string]string{"user_id": "7"}, "", 7},
		{"metadata wins", map[string]string{"user_id": "7"}, "9", 7},
		{"fallback used", map[string]string{}, "9", 9},
		{"nil metadata", nil, "9", 9},
		{"garbage", map[string]string{"user_id": "abc"}, "", 0},
		{"empty", nil, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userIDFromMetadata(tt.metadata, tt.fallback))
		})
	}
}

func TestProviderConfigured(t *testing.T) {
	catalog := NewCatalogFromEnv()
	assert.True(t, NewStripeProvider("sk_test", "whsec_x", catalog).Configured())
	assert.False(t, NewStripeProvider("", "whsec_x", catalog).Configured())
	assert.False(t, NewStripeProvider("sk_test", "", catalog).Configured())
}
