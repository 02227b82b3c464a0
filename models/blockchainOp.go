package models

import "time"

// BlockchainOp is a generic chain-mutating job (mint, burn, payout, ...).
// Created by any domain action that must eventually reach the chain; mutated
// exclusively by the operation worker. A FAILED op with retries exhausted is
// terminal and requires manual intervention.
type BlockchainOp struct {
	ID         int                `gorm:"primary_key" json:"id"`
	OpType     BlockchainOpType   `gorm:"size:30;not null;index" json:"op_type"`
	EntityType string             `gorm:"size:50;not null;index:idx_op_entity,priority:1" json:"entity_type"`
	EntityId   int                `gorm:"not null;index:idx_op_entity,priority:2" json:"entity_id"`
	Status     BlockchainOpStatus `gorm:"size:20;not null;default:'PENDING';index:idx_op_poll,priority:1" json:"status"`
	// Fresh jobs outrank repeatedly-failing ones: the poll orders by
	// (retry_count, created_at) to avoid head-of-line blocking.
	RetryCount    int        `gorm:"not null;default:0;index:idx_op_poll,priority:2" json:"retry_count"`
	TxHash        *string    `gorm:"size:100" json:"tx_hash"`
	Payload       []byte     `gorm:"type:blob" json:"payload"`
	ChainId       string     `gorm:"size:50;not null" json:"chain_id"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_op_poll,priority:3" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
