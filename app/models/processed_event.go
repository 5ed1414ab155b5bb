package models

import "time"

// ProcessedEvent is the idempotency marker for provider webhook events.
// The unique (provider, event_id) index is what turns the provider's
// at-least-once delivery into at-most-once effect: the marker is inserted
// in the same transaction as the state change it guards, so a replayed
// delivery hits the conflict and is short-circuited.
type ProcessedEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Provider        string    `gorm:"type:varchar(20);not null;index:ux_processed_events_provider_event,unique,priority:1" json:"provider"`
	EventID         string    `gorm:"type:varchar(191);not null;index:ux_processed_events_provider_event,unique,priority:2" json:"event_id"`
	EventType       string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string    `gorm:"type:longtext" json:"-"`
	ProcessingError string    `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
