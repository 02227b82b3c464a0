package models

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Distribution is a payout of income from a tranche to its investors.
type Distribution struct {
	ID            int                `gorm:"primary_key" json:"id"`
	TrancheId     int                `gorm:"not null;index" json:"tranche_id"`
	Amount        decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency      string             `gorm:"size:10;not null;default:'USD'" json:"currency"`
	Status        DistributionStatus `gorm:"size:30;not null;default:'Draft';index" json:"status"`
	PayoutRef     string             `gorm:"size:255;index" json:"payout_ref"`
	ApprovedBy    *string            `gorm:"size:100" json:"approved_by"`
	PaidAt        *time.Time         `json:"paid_at"`
	CorrelationId string             `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time         `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetDistribution(ctx context.Context, tx *gorm.DB, id int) (*Distribution, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var dist Distribution
	err := tx.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&dist).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &dist, nil
}

func UpdateDistributionStatus(ctx context.Context, tx *gorm.DB, id int, target DistributionStatus) (*Distribution, error) {
	dist, err := GetDistribution(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertTransition(EntityKindDistribution, string(dist.Status), string(target)); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": target}
	if target == DistributionStatusPaid {
		now := time.Now().UTC()
		updates["paid_at"] = &now
	}
	if err := tx.WithContext(ctx).Model(&Distribution{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	dist.Status = target
	return dist, nil
}
