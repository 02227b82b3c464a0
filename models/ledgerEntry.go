package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one leg of a double-entry posting. Entries are append-only:
// corrections are new offsetting entries, never edits.
//
// Idempotency invariant: for any idempotency_key, at most one entry exists
// per (ledger_type, account_ref). The unique index below makes replayed
// events race safely to a single row.
type LedgerEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	LedgerType     LedgerType      `gorm:"type:enum('Escrow','Ownership','Distribution','Tranche','Redemption','Fee');not null;index:idx_le_type_ref,priority:1;index:uniq_le_idem,unique,priority:1" json:"ledger_type"`
	AccountRef     string          `gorm:"size:100;not null;index:idx_le_account,priority:1;index:uniq_le_idem,unique,priority:2" json:"account_ref"`
	Direction      EntryDirection  `gorm:"type:enum('Debit','Credit');not null" json:"direction"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency       string          `gorm:"size:10;not null" json:"currency"`
	EntityType     string          `gorm:"size:50;not null;index:idx_le_entity,priority:1" json:"entity_type"`
	EntityId       int             `gorm:"not null;index:idx_le_entity,priority:2" json:"entity_id"`
	ExternalRef    string          `gorm:"size:255;index;index:idx_le_type_ref,priority:2" json:"external_ref"`
	IdempotencyKey *string         `gorm:"size:255;index:uniq_le_idem,unique,priority:3" json:"idempotency_key"`
	Description    string          `gorm:"size:255" json:"description"`
	PostedAt       time.Time       `gorm:"index;not null;index:idx_le_account,priority:2" json:"posted_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Ledger immutability guardrails: ledger_entries are append-only.
func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be updated")
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be deleted")
}

// SignedAmount is credit-positive, debit-negative. Balance queries and
// reconciliation sum this; the posting path never reads balances.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == EntryDirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
