package billing

import (
	"encoding/json"
	"time"
)

// EventType is the provider-neutral classification of a webhook event.
// Each provider implementation maps its own event names onto these.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout_completed"
	EventPaymentSucceeded     EventType = "payment_succeeded"
	EventPaymentFailed        EventType = "payment_failed"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_canceled"
	EventUnknown              EventType = "unknown"
)

// Event is a verified, normalized provider notification. Everything the
// dispatcher needs is lifted out of the provider payload here so the
// handlers never touch provider-specific JSON.
type Event struct {
	ID           string
	Type         EventType
	Provider     string
	ProviderType string // original provider event name, for logging

	SubscriptionID string // provider subscription identifier
	CustomerID     string // provider customer identifier
	SessionID      string // checkout session, set for checkout events
	PaymentID      string // provider transaction identifier

	UserID uint   // local user id carried through checkout metadata
	Plan   string // plan tag carried through checkout metadata

	Amount   int64  // minor currency units
	Currency string // ISO 4217, upper-case

	Status            string // remote subscription status
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time

	Raw json.RawMessage
}

// CheckoutRequest carries everything a provider needs to open a hosted
// checkout session for a user and plan.
type CheckoutRequest struct {
	UserID     uint
	Email      string
	Plan       string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the hosted session the user is redirected to.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// PlanPrice describes one purchasable tier: price in minor currency
// units plus an optional preconfigured provider price ID. When PriceID
// is empty the provider provisions the remote price lazily.
type PlanPrice struct {
	Plan     string
	Amount   int64
	Currency string
	Interval string
	PriceID  string
}
