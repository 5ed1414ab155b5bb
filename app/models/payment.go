package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment is one immutable ledger row per provider transaction. Amounts
// are always in the smallest currency unit (pence, cents); floats never
// touch money. There are no update or delete paths for this model.
type Payment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	SubscriptionID *uint     `gorm:"index" json:"subscription_id,omitempty"`
	Provider       string    `gorm:"type:varchar(20);not null;index:ux_payments_provider_external,unique,priority:1" json:"provider"`
	ExternalID     string    `gorm:"type:varchar(191);not null;index:ux_payments_provider_external,unique,priority:2" json:"external_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency" validate:"len=3,uppercase"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status" validate:"oneof=succeeded failed"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// BeforeCreate assigns the public UUID for the ledger row.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}
