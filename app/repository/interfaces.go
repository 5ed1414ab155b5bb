package repository

import (
	"github.com/promptdeck/promptdeck/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountByPlan(plan string) (int64, error)
}

// SubscriptionRepository defines read access to subscription rows for the
// HTTP layer. Writes go through the billing dispatcher exclusively.
type SubscriptionRepository interface {
	GetByID(id uint) (*models.Subscription, error)
	GetByExternalID(provider, externalID string) (*models.Subscription, error)
	GetActiveByUserID(userID uint, provider string) (*models.Subscription, error)
	ListByUserID(userID uint) ([]models.Subscription, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

// PaymentRepository defines read access to the payment ledger.
type PaymentRepository interface {
	GetByID(id string) (*models.Payment, error)
	ListByUserID(userID uint, offset, limit int) ([]models.Payment, error)
	CountByUserID(userID uint) (int64, error)
	SumSucceededByCurrency() (map[string]int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
	}
}
