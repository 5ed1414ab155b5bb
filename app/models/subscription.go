package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
)

// Subscription mirrors a provider subscription and carries the plan it
// entitles the user to. Rows are created and updated exclusively by the
// billing event dispatcher in reaction to verified provider events; the
// single exception is the cancel-at-period-end flag, which is set on the
// user-initiated cancel path.
type Subscription struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	Provider          string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_provider_external,unique,priority:1;index:idx_subscriptions_provider_status,priority:1" json:"provider"`
	ExternalID        string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_provider_external,unique,priority:2" json:"external_id"`
	Plan              string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan"`
	Status            string     `gorm:"type:varchar(32);not null;default:'incomplete';index:idx_subscriptions_provider_status,priority:2" json:"status"`
	CurrentPeriodEnd  *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	RawPayloadJSON    string     `gorm:"type:longtext" json:"-"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently entitles its plan.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsTerminal reports whether the subscription can never transition again.
// A canceled external ID stays canceled; a fresh purchase creates a new row.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCanceled
}
