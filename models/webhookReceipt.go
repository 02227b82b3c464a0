package models

import "time"

// WebhookReceipt is the existence check behind webhook idempotency: one row
// per (provider, provider_ref, event_type). A replayed delivery finds the
// row, acks the provider, and no-ops. Event type is part of the key because
// providers reuse references across event types (charge.succeeded and a later
// charge.refunded share the charge reference) and each must process once.
// The ledger idempotency key is the second, independent guard on the same
// event.
type WebhookReceipt struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Provider      string     `gorm:"size:50;not null;index:uniq_receipt,unique,priority:1" json:"provider"`
	ProviderRef   string     `gorm:"size:255;not null;index:uniq_receipt,unique,priority:2" json:"provider_ref"`
	EventType     string     `gorm:"size:100;not null;index:uniq_receipt,unique,priority:3" json:"event_type"`
	RawEvent      []byte     `gorm:"type:blob" json:"raw_event"`
	ProcessedAt   *time.Time `json:"processed_at"`
	ProcessNote   *string    `gorm:"type:text" json:"process_note"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
