package models

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Subscription is an investor's commitment to a tranche. The status field
// only moves through AssertTransition; nothing else writes it.
type Subscription struct {
	ID            int                `gorm:"primary_key" json:"id"`
	InvestorRef   string             `gorm:"size:100;not null;index" json:"investor_ref"`
	TrancheId     int                `gorm:"not null;index" json:"tranche_id"`
	Amount        decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency      string             `gorm:"size:10;not null;default:'USD'" json:"currency"`
	Status        SubscriptionStatus `gorm:"size:30;not null;default:'Draft';index" json:"status"`
	PaymentRef    string             `gorm:"size:255;index" json:"payment_ref"`
	PaidAt        *time.Time         `json:"paid_at"`
	CorrelationId string             `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time         `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSubscription(ctx context.Context, tx *gorm.DB, id int) (*Subscription, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var sub Subscription
	err := tx.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func GetSubscriptionByPaymentRef(ctx context.Context, tx *gorm.DB, paymentRef string) (*Subscription, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var sub Subscription
	err := tx.WithContext(ctx).Where("payment_ref = ? AND deleted_at IS NULL", paymentRef).First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscriptionStatus guards the transition and writes the new status in
// the same statement set. Callers run this inside their unit of work.
func UpdateSubscriptionStatus(ctx context.Context, tx *gorm.DB, id int, target SubscriptionStatus) (*Subscription, error) {
	sub, err := GetSubscription(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertTransition(EntityKindSubscription, string(sub.Status), string(target)); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": target}
	if target == SubscriptionStatusPaid {
		now := time.Now().UTC()
		updates["paid_at"] = &now
	}
	if err := tx.WithContext(ctx).Model(&Subscription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	sub.Status = target
	return sub, nil
}
