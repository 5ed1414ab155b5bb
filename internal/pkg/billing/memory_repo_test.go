package billing

import (
	"context"
	"sync"

	"github.com/promptdeck/promptdeck/app/models"
	"gorm.io/gorm"
)

// memoryRepository implements Repository for tests. A single mutex
// serializes transactions and a snapshot is restored on rollback, which
// mirrors the atomicity the GORM implementation gets from the database.
type memoryRepository struct {
	mu sync.Mutex

	users    map[uint]models.User
	subs     map[string]models.Subscription // provider + "/" + externalID
	payments map[string]models.Payment      // provider + "/" + externalID
	events   map[string]models.ProcessedEvent

	nextSubID     uint
	nextPaymentID uint
}

func newMemoryRepository(users ...models.User) *memoryRepository {
	r := &memoryRepository{
		users:    make(map[uint]models.User),
		subs:     make(map[string]models.Subscription),
		payments: make(map[string]models.Payment),
		events:   make(map[string]models.ProcessedEvent),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func subKey(provider, externalID string) string { return provider + "/" + externalID }

func (r *memoryRepository) snapshot() *memoryRepository {
	clone := &memoryRepository{
		users:         make(map[uint]models.User, len(r.users)),
		subs:          make(map[string]models.Subscription, len(r.subs)),
		payments:      make(map[string]models.Payment, len(r.payments)),
		events:        make(map[string]models.ProcessedEvent, len(r.events)),
		nextSubID:     r.nextSubID,
		nextPaymentID: r.nextPaymentID,
	}
	for k, v := range r.users {
		clone.users[k] = v
	}
	for k, v := range r.subs {
		clone.subs[k] = v
	}
	for k, v := range r.payments {
		clone.payments[k] = v
	}
	for k, v := range r.events {
		clone.events[k] = v
	}
	return clone
}

func (r *memoryRepository) restore(snap *memoryRepository) {
	r.users = snap.users
	r.subs = snap.subs
	r.payments = snap.payments
	r.events = snap.events
	r.nextSubID = snap.nextSubID
	r.nextPaymentID = snap.nextPaymentID
}

func (r *memoryRepository) Transaction(fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	if err := fn(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepository) GetUserByID(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memoryRepository) SaveUserPlan(userID uint, plan string) error {
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Plan = plan
	r.users[userID] = u
	return nil
}

func (r *memoryRepository) GetSubscriptionForUpdate(provider, externalID string) (*models.Subscription, error) {
	s, ok := r.subs[subKey(provider, externalID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *memoryRepository) GetActiveSubscription(userID uint, provider string) (*models.Subscription, error) {
	var best *models.Subscription
	for k := range r.subs {
		s := r.subs[k]
		if s.UserID == userID && s.Provider == provider && s.Status == models.SubscriptionStatusActive {
			if best == nil || s.ID > best.ID {
				best = &s
			}
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (r *memoryRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	for _, s := range r.subs {
		if s.UserID == userID {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

func (r *memoryRepository) SaveSubscription(sub *models.Subscription) error {
	key := subKey(sub.Provider, sub.ExternalID)
	if existing, ok := r.subs[key]; ok {
		sub.ID = existing.ID
	} else {
		r.nextSubID++
		sub.ID = r.nextSubID
	}
	r.subs[key] = *sub
	return nil
}

func (r *memoryRepository) SupersedeActiveSubscriptions(userID uint, provider, keepExternalID string) error {
	for k, s := range r.subs {
		if s.UserID == userID && s.Provider == provider &&
			s.Status == models.SubscriptionStatusActive && s.ExternalID != keepExternalID {
			s.Status = models.SubscriptionStatusCanceled
			r.subs[k] = s
		}
	}
	return nil
}

func (r *memoryRepository) CreatePayment(p *models.Payment) (bool, error) {
	key := subKey(p.Provider, p.ExternalID)
	if _, ok := r.payments[key]; ok {
		return false, nil
	}
	r.nextPaymentID++
	p.ID = r.nextPaymentID
	r.payments[key] = *p
	return true, nil
}

func (r *memoryRepository) ListPaymentsByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (r *memoryRepository) MarkEventProcessed(ev *models.ProcessedEvent) (bool, error) {
	key := subKey(ev.Provider, ev.EventID)
	if _, ok := r.events[key]; ok {
		return false, nil
	}
	r.events[key] = *ev
	return true, nil
}

func (r *memoryRepository) SetEventProcessingError(provider, eventID, message string) error {
	key := subKey(provider, eventID)
	ev, ok := r.events[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ev.ProcessingError = message
	r.events[key] = ev
	return nil
}

// fakeProvider implements Provider for tests.
type fakeProvider struct {
	configured  bool
	checkoutErr error
	session     CheckoutSession
	requests    []CheckoutRequest
	canceled    []string
	cancelErr   error
	verifyEvent *Event
	verifyErr   error
}

func (f *fakeProvider) Name() string     { return models.BillingProviderStripe }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	f.requests = append(f.requests, req)
	sess := f.session
	return &sess, nil
}

func (f *fakeProvider) VerifyEvent(_ []byte, _ string) (*Event, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyEvent, nil
}

func (f *fakeProvider) CancelSubscription(_ context.Context, externalID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, externalID)
	return nil
}
