package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AnchorRecord asserts that a specific off-chain event occurred, to be
// attested on chain by the anchor worker. (entity_type, entity_id,
// event_type, canonical_hash) is unique: a retried createAnchor with the same
// payload is a no-op, a changed payload hashes to a new record.
//
// Rows are mutated only by the anchor worker and the operator retry action;
// they are never hard-deleted (deleted_at only).
type AnchorRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	EntityType    string          `gorm:"size:50;not null;index:uniq_anchor,unique,priority:1" json:"entity_type"`
	EntityId      int             `gorm:"not null;index:uniq_anchor,unique,priority:2" json:"entity_id"`
	EventType     AnchorEventType `gorm:"size:50;not null;index:uniq_anchor,unique,priority:3" json:"event_type"`
	CanonicalHash string          `gorm:"size:64;not null;index:uniq_anchor,unique,priority:4" json:"canonical_hash"`
	Payload       []byte          `gorm:"type:blob" json:"payload"`
	AnchorStatus  AnchorStatus    `gorm:"size:20;not null;default:'PENDING';index:idx_anchor_poll,priority:1" json:"anchor_status"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	ChainRef      string          `gorm:"size:100" json:"chain_ref"`
	TxHash        *string         `gorm:"size:100" json:"tx_hash"`
	LastError     *string         `gorm:"type:text" json:"last_error"`
	AnchoredAt    *time.Time      `json:"anchored_at"`
	LockedAt      *time.Time      `gorm:"index:idx_anchor_poll,priority:2" json:"locked_at"`
	LockedBy      *string         `gorm:"size:100" json:"locked_by"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time      `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *AnchorRecord) BeforeDelete(tx *gorm.DB) error {
	return errors.New("anchor records cannot be deleted; set deleted_at")
}
