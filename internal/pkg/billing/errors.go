package billing

import "errors"

// Expected conditions are sentinel errors so callers dispatch with
// errors.Is instead of matching message strings.
var (
	// ErrNotConfigured means the provider integration is missing its keys.
	ErrNotConfigured = errors.New("billing provider is not configured")

	// ErrAdminForbidden rejects checkout attempts by admin users.
	ErrAdminForbidden = errors.New("admin accounts cannot start a checkout")

	// ErrAlreadySubscribed rejects checkout for a plan the user already
	// holds an active subscription for.
	ErrAlreadySubscribed = errors.New("already subscribed to this plan")

	// ErrUnknownPlan rejects plans outside the paid catalog.
	ErrUnknownPlan = errors.New("unknown or non-purchasable plan")

	// ErrInvalidSignature is the single verification failure returned for
	// any bad webhook delivery. It deliberately carries no detail about
	// which part of verification failed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUserNotFound means an event referenced a user this system does
	// not know. The event is acknowledged, not retried.
	ErrUserNotFound = errors.New("user not found")

	// ErrSubscriptionNotFound means an event referenced a subscription
	// with no local row. The event is acknowledged, not retried.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNoActiveSubscription means a cancel request found nothing to cancel.
	ErrNoActiveSubscription = errors.New("no active subscription")
)

// permanentErrors cannot self-heal on redelivery: the dispatcher records
// them on the idempotency marker and acknowledges the event.
var permanentErrors = []error{ErrUserNotFound, ErrSubscriptionNotFound, ErrUnknownPlan}

func isPermanent(err error) bool {
	for _, p := range permanentErrors {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
