package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/promptdeck/promptdeck/app/models"
	"github.com/promptdeck/promptdeck/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Dispatcher routes a verified event to exactly one handler, gated by
// the idempotency guard. Each dispatch runs in a single transaction:
// the ProcessedEvent marker and every mutation the handler performs
// commit together or not at all, so a guard row can never outlive a
// failed mutation.
type Dispatcher struct {
	repo Repository
}

func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Dispatch applies one verified event. It returns nil for duplicates,
// unknown types, and permanent handler failures (all of which must be
// acknowledged so the provider stops redelivering); it returns an error
// only when a retry could succeed, rolling the whole transaction back.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	return d.repo.Transaction(func(tx Repository) error {
		created, err := tx.MarkEventProcessed(&models.ProcessedEvent{
			Provider:    ev.Provider,
			EventID:     ev.ID,
			EventType:   ev.ProviderType,
			PayloadJSON: string(ev.Raw),
		})
		if err != nil {
			return err
		}
		if !created {
			log.Printf("[billing] duplicate event %s/%s, skipping", ev.Provider, ev.ID)
			return nil
		}

		herr := d.handle(ctx, tx, ev)
		if herr == nil {
			return nil
		}
		if isPermanent(herr) {
			// Redelivering a malformed or unmatchable event cannot
			// self-heal; record the reason and acknowledge.
			log.Printf("[billing] event %s/%s (%s) not applied: %v", ev.Provider, ev.ID, ev.ProviderType, herr)
			return tx.SetEventProcessingError(ev.Provider, ev.ID, herr.Error())
		}
		return herr
	})
}

func (d *Dispatcher) handle(ctx context.Context, tx Repository, ev *Event) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		return d.handleCheckoutCompleted(tx, ev)
	case EventPaymentSucceeded:
		return d.handlePaymentSucceeded(tx, ev)
	case EventPaymentFailed:
		return d.handlePaymentFailed(tx, ev)
	case EventSubscriptionUpdated, EventSubscriptionCanceled:
		return d.handleSubscriptionChanged(tx, ev)
	default:
		// Acknowledged without effect; the marker already records it.
		return nil
	}
}

// handleCheckoutCompleted creates the subscription and its first ledger
// row, then projects the purchased plan onto the user. A new active
// subscription supersedes any prior active one for the same provider.
func (d *Dispatcher) handleCheckoutCompleted(tx Repository, ev *Event) error {
	if ev.UserID == 0 {
		return fmt.Errorf("%w: checkout session %s carries no user reference", ErrUserNotFound, ev.SessionID)
	}
	user, err := tx.GetUserByID(ev.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrUserNotFound, ev.UserID)
		}
		return err
	}
	plan := entitlements.Normalize(ev.Plan)
	if !entitlements.IsPaid(plan) {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, ev.Plan)
	}
	if ev.SubscriptionID == "" {
		return fmt.Errorf("%w: checkout session %s carries no subscription", ErrSubscriptionNotFound, ev.SessionID)
	}

	if err := tx.SupersedeActiveSubscriptions(user.ID, ev.Provider, ev.SubscriptionID); err != nil {
		return err
	}

	sub := &models.Subscription{
		UserID:           user.ID,
		Provider:         ev.Provider,
		ExternalID:       ev.SubscriptionID,
		Plan:             string(plan),
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: ev.CurrentPeriodEnd,
		RawPayloadJSON:   string(ev.Raw),
	}
	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	paymentID := ev.PaymentID
	if paymentID == "" {
		// Session without an invoice reference: key the first payment on
		// the session itself so replays still dedupe.
		paymentID = "cs:" + ev.SessionID
	}
	if _, err := tx.CreatePayment(&models.Payment{
		UserID:         user.ID,
		SubscriptionID: &sub.ID,
		Provider:       ev.Provider,
		ExternalID:     paymentID,
		Amount:         ev.Amount,
		Currency:       ev.Currency,
		Status:         models.PaymentStatusSucceeded,
	}); err != nil {
		return err
	}

	return tx.SaveUserPlan(user.ID, string(plan))
}

// handlePaymentSucceeded appends one ledger row for a recurring charge.
// It is also the only externally driven way back from past_due to
// active for a given external ID.
func (d *Dispatcher) handlePaymentSucceeded(tx Repository, ev *Event) error {
	sub, err := d.lockSubscription(tx, ev)
	if err != nil {
		return err
	}

	if _, err := tx.CreatePayment(&models.Payment{
		UserID:         sub.UserID,
		SubscriptionID: &sub.ID,
		Provider:       ev.Provider,
		ExternalID:     ev.PaymentID,
		Amount:         ev.Amount,
		Currency:       ev.Currency,
		Status:         models.PaymentStatusSucceeded,
	}); err != nil {
		return err
	}

	if sub.Status == models.SubscriptionStatusPastDue {
		sub.Status = models.SubscriptionStatusActive
		return tx.SaveSubscription(sub)
	}
	return nil
}

// handlePaymentFailed records the failed charge and moves an active
// subscription to past_due. The user's plan projection is deliberately
// untouched; entitlement is only withdrawn on terminal cancellation.
func (d *Dispatcher) handlePaymentFailed(tx Repository, ev *Event) error {
	sub, err := d.lockSubscription(tx, ev)
	if err != nil {
		return err
	}

	if _, err := tx.CreatePayment(&models.Payment{
		UserID:         sub.UserID,
		SubscriptionID: &sub.ID,
		Provider:       ev.Provider,
		ExternalID:     ev.PaymentID,
		Amount:         ev.Amount,
		Currency:       ev.Currency,
		Status:         models.PaymentStatusFailed,
	}); err != nil {
		return err
	}

	if sub.Status == models.SubscriptionStatusActive {
		sub.Status = models.SubscriptionStatusPastDue
		return tx.SaveSubscription(sub)
	}
	return nil
}

// handleSubscriptionChanged maps the remote status onto the local state
// machine. canceled is terminal per external ID: once there, the row
// never transitions again, and the user's plan is reconciled across
// whatever entitling subscriptions remain.
func (d *Dispatcher) handleSubscriptionChanged(tx Repository, ev *Event) error {
	sub, err := d.lockSubscription(tx, ev)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return nil
	}

	status := ev.Status
	if ev.Type == EventSubscriptionCanceled {
		status = models.SubscriptionStatusCanceled
	}

	sub.Status = status
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	if ev.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	sub.RawPayloadJSON = string(ev.Raw)
	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	if status == models.SubscriptionStatusCanceled {
		return reconcileUserPlan(tx, sub.UserID)
	}
	return nil
}

func (d *Dispatcher) lockSubscription(tx Repository, ev *Event) (*models.Subscription, error) {
	if ev.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: event %s has no subscription reference", ErrSubscriptionNotFound, ev.ID)
	}
	sub, err := tx.GetSubscriptionForUpdate(ev.Provider, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSubscriptionNotFound, ev.Provider, ev.SubscriptionID)
		}
		return nil, err
	}
	return sub, nil
}

// reconcileUserPlan recomputes the user's plan projection from the
// subscriptions that still entitle one. active and past_due both
// entitle (payment failure alone never downgrades); with nothing left
// the projection reverts to free.
func reconcileUserPlan(tx Repository, userID uint) error {
	subs, err := tx.ListSubscriptionsByUser(userID)
	if err != nil {
		return err
	}

	best := entitlements.PlanFree
	for _, sub := range subs {
		if sub.Status != models.SubscriptionStatusActive && sub.Status != models.SubscriptionStatusPastDue {
			continue
		}
		candidate := entitlements.Normalize(sub.Plan)
		if entitlements.Rank(candidate) > entitlements.Rank(best) {
			best = candidate
		}
	}

	return tx.SaveUserPlan(userID, string(best))
}
