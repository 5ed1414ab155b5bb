package billing

import "context"

// Provider is the capability interface a payment processor integration
// must implement. Business logic only ever talks to this interface; the
// provider string stored on subscriptions and payments comes from Name.
type Provider interface {
	// Name returns the provider tag stored on local rows ("stripe").
	Name() string

	// Configured reports whether the integration has its credentials.
	Configured() bool

	// CreateCheckout opens a hosted checkout session. It must not mutate
	// any local state; attribution data travels as opaque metadata on the
	// session so the completion event can be matched without a second
	// database round trip.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// VerifyEvent authenticates raw webhook bytes against the signature
	// header and returns the normalized event. Any failure collapses to
	// ErrInvalidSignature. Callers must pass the exact bytes received on
	// the wire; re-serialized payloads will not verify.
	VerifyEvent(payload []byte, signature string) (*Event, error)

	// CancelSubscription schedules the remote subscription to end at the
	// current period boundary. Local status stays active until the
	// terminal webhook event arrives.
	CancelSubscription(ctx context.Context, externalID string) error
}
