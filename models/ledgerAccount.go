package models

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"gorm.io/gorm"
)

// LedgerAccount is a chart-of-accounts row. Accounts are created by
// configuration (cmd/seed-accounts) or an admin action, never by the event
// path; their lifecycle is independent of ledger entries.
type LedgerAccount struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Code        string      `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	AccountType AccountType `gorm:"type:enum('Asset','Liability','Revenue','Expense');not null" json:"account_type"`
	Currency    string      `gorm:"size:10;not null;default:'USD'" json:"currency"`
	IsActive    bool        `gorm:"not null;default:true" json:"is_active"`
	DeletedAt   *time.Time  `gorm:"index" json:"deleted_at"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetLedgerAccountByCode(ctx context.Context, tx *gorm.DB, code string) (*LedgerAccount, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var account LedgerAccount
	err := tx.WithContext(ctx).
		Where("code = ? AND deleted_at IS NULL", code).
		First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}

func ListActiveLedgerAccounts(ctx context.Context, tx *gorm.DB) ([]LedgerAccount, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var accounts []LedgerAccount
	err := tx.WithContext(ctx).
		Where("is_active = 1 AND deleted_at IS NULL").
		Order("code ASC").
		Find(&accounts).Error
	return accounts, err
}
