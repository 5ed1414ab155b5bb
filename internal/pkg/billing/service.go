package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/promptdeck/promptdeck/app/models"
	"github.com/promptdeck/promptdeck/internal/pkg/env"
	"gorm.io/gorm"
)

// Service is the entry point the HTTP layer talks to. It owns the
// injected provider, the repository, and the dispatcher; nothing in
// here keeps hidden global state.
type Service struct {
	repo       Repository
	provider   Provider
	catalog    *Catalog
	dispatcher *Dispatcher

	successURL string
	cancelURL  string
}

// NewService creates a billing service from an injected repository,
// provider and catalog. Redirect targets default from PUBLIC_DOMAIN.
func NewService(repo Repository, provider Provider, catalog *Catalog) *Service {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")
	return &Service{
		repo:       repo,
		provider:   provider,
		catalog:    catalog,
		dispatcher: NewDispatcher(repo),
		successURL: base + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  base + "/pricing",
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with
// the Stripe provider wired from the environment.
func NewServiceFromDB(db *gorm.DB) *Service {
	catalog := NewCatalogFromEnv()
	return NewService(NewRepository(db), NewStripeProviderFromEnv(catalog), catalog)
}

// Checkout opens a hosted checkout session for the user and plan. It
// mutates no local state; all entitlement changes arrive later through
// the verified completion event.
func (s *Service) Checkout(ctx context.Context, userID uint, plan string) (*CheckoutSession, error) {
	if !s.provider.Configured() {
		return nil, ErrNotConfigured
	}

	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.IsAdmin() {
		return nil, ErrAdminForbidden
	}

	pp, ok := s.catalog.Price(plan)
	if !ok {
		return nil, ErrUnknownPlan
	}

	if current, err := s.repo.GetActiveSubscription(user.ID, s.provider.Name()); err == nil {
		if current.Plan == pp.Plan {
			return nil, ErrAlreadySubscribed
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sess, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		UserID:     user.ID,
		Email:      user.Email,
		Plan:       pp.Plan,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout initiation: %w", err)
	}
	return sess, nil
}

// ProcessWebhook verifies raw webhook bytes and applies the event. The
// payload must be the exact bytes read off the wire; verification runs
// before anything else touches them.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.VerifyEvent(payload, signature)
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, ev)
}

// CancelAtPeriodEnd schedules the user's active subscription to end at
// the period boundary. The remote side is told first; locally only the
// flag flips and status stays active until the terminal event arrives.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID uint) (*models.Subscription, error) {
	if !s.provider.Configured() {
		return nil, ErrNotConfigured
	}

	sub, err := s.repo.GetActiveSubscription(userID, s.provider.Name())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	if err := s.provider.CancelSubscription(ctx, sub.ExternalID); err != nil {
		return nil, err
	}

	sub.CancelAtPeriodEnd = true
	if err := s.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// CurrentSubscription returns the user's active subscription, or
// ErrNoActiveSubscription.
func (s *Service) CurrentSubscription(userID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetActiveSubscription(userID, s.provider.Name())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// ListPayments returns the user's ledger rows, newest first. The ledger
// is append-only; this is a read-only aggregation over it.
func (s *Service) ListPayments(userID uint) ([]models.Payment, error) {
	return s.repo.ListPaymentsByUser(userID)
}
