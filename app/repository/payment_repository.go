package repository

import (
	"github.com/promptdeck/promptdeck/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// GetByID retrieves a payment by its public UUID
func (r *paymentRepository) GetByID(id string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("uuid = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByUserID retrieves a paginated list of the user's payments, newest first
func (r *paymentRepository) ListByUserID(userID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

// CountByUserID returns the number of payments recorded for a user
func (r *paymentRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// SumSucceededByCurrency aggregates the succeeded ledger amounts per currency
func (r *paymentRepository) SumSucceededByCurrency() (map[string]int64, error) {
	type row struct {
		Currency string
		Total    int64
	}
	var rows []row
	err := r.db.Model(&models.Payment{}).
		Select("currency, SUM(amount) AS total").
		Where("status = ?", models.PaymentStatusSucceeded).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int64, len(rows))
	for _, r := range rows {
		sums[r.Currency] = r.Total
	}
	return sums, nil
}
