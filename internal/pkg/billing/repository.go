package billing

import (
	"github.com/promptdeck/promptdeck/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the billing service and
// dispatcher. Transaction returns a Repository bound to the transaction;
// every event handler runs entirely inside one so the idempotency marker
// and the mutations it guards commit or roll back together.
type Repository interface {
	Transaction(fn func(Repository) error) error

	GetUserByID(id uint) (*models.User, error)
	SaveUserPlan(userID uint, plan string) error

	// GetSubscriptionForUpdate locks the subscription row for the rest of
	// the surrounding transaction so concurrent events for the same
	// external ID serialize instead of interleaving.
	GetSubscriptionForUpdate(provider, externalID string) (*models.Subscription, error)
	GetActiveSubscription(userID uint, provider string) (*models.Subscription, error)
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	// SupersedeActiveSubscriptions cancels any active subscription for the
	// user and provider other than the given external ID.
	SupersedeActiveSubscriptions(userID uint, provider, keepExternalID string) error

	// CreatePayment appends one ledger row. It reports false without error
	// when a row for the same (provider, external_id) already exists.
	CreatePayment(p *models.Payment) (bool, error)
	ListPaymentsByUser(userID uint) ([]models.Payment, error)

	// MarkEventProcessed inserts the idempotency marker. It reports false
	// when the event was already recorded by an earlier delivery.
	MarkEventProcessed(ev *models.ProcessedEvent) (bool, error)
	SetEventProcessingError(provider, eventID, message string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUserPlan(userID uint, plan string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("plan", plan).Error
}

func (r *gormRepository) GetSubscriptionForUpdate(provider, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetActiveSubscription(userID uint, provider string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND provider = ? AND status = ?", userID, provider, models.SubscriptionStatusActive).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan",
			"status",
			"current_period_end",
			"cancel_at_period_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND external_id = ?", sub.Provider, sub.ExternalID).
		First(sub).Error
}

func (r *gormRepository) SupersedeActiveSubscriptions(userID uint, provider, keepExternalID string) error {
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND provider = ? AND status = ? AND external_id <> ?",
			userID, provider, models.SubscriptionStatusActive, keepExternalID).
		Update("status", models.SubscriptionStatusCanceled).Error
}

func (r *gormRepository) CreatePayment(p *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListPaymentsByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("id DESC").Find(&payments).Error
	return payments, err
}

func (r *gormRepository) MarkEventProcessed(ev *models.ProcessedEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(ev)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) SetEventProcessingError(provider, eventID, message string) error {
	return r.db.Model(&models.ProcessedEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Update("processing_error", message).Error
}
