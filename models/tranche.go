package models

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tranche is a fundraising slice of a real asset offering.
type Tranche struct {
	ID            int             `gorm:"primary_key" json:"id"`
	AssetRef      string          `gorm:"size:100;not null;index" json:"asset_ref"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"target_amount"`
	Currency      string          `gorm:"size:10;not null;default:'USD'" json:"currency"`
	Status        TrancheStatus   `gorm:"size:30;not null;default:'Open';index" json:"status"`
	TokenAddress  *string         `gorm:"size:100" json:"token_address"`
	ChainId       string          `gorm:"size:50" json:"chain_id"`
	FundedAt      *time.Time      `json:"funded_at"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time      `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetTranche(ctx context.Context, tx *gorm.DB, id int) (*Tranche, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var tranche Tranche
	err := tx.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&tranche).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &tranche, nil
}

func UpdateTrancheStatus(ctx context.Context, tx *gorm.DB, id int, target TrancheStatus) (*Tranche, error) {
	tranche, err := GetTranche(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertTransition(EntityKindTranche, string(tranche.Status), string(target)); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": target}
	if target == TrancheStatusFunded {
		now := time.Now().UTC()
		updates["funded_at"] = &now
	}
	if err := tx.WithContext(ctx).Model(&Tranche{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	tranche.Status = target
	return tranche, nil
}
