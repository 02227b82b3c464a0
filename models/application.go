package models

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"gorm.io/gorm"
)

// Application is an investor onboarding application. Its CRUD lives with the
// identity collaborator; only the status lifecycle (and the approval anchor)
// is owned here.
type Application struct {
	ID            int               `gorm:"primary_key" json:"id"`
	ApplicantRef  string            `gorm:"size:100;not null;index" json:"applicant_ref"`
	Status        ApplicationStatus `gorm:"size:30;not null;default:'Submitted';index" json:"status"`
	ReviewedBy    *string           `gorm:"size:100" json:"reviewed_by"`
	DecidedAt     *time.Time        `json:"decided_at"`
	CorrelationId string            `gorm:"size:64;index" json:"correlation_id"`
	DeletedAt     *time.Time        `gorm:"index" json:"deleted_at"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetApplication(ctx context.Context, tx *gorm.DB, id int) (*Application, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var app Application
	err := tx.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&app).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &app, nil
}

func UpdateApplicationStatus(ctx context.Context, tx *gorm.DB, id int, target ApplicationStatus, reviewedBy string) (*Application, error) {
	app, err := GetApplication(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := AssertTransition(EntityKindApplication, string(app.Status), string(target)); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": target}
	if target == ApplicationStatusApproved || target == ApplicationStatusRejected {
		now := time.Now().UTC()
		updates["decided_at"] = &now
		if reviewedBy != "" {
			updates["reviewed_by"] = &reviewedBy
		}
	}
	if err := tx.WithContext(ctx).Model(&Application{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	app.Status = target
	return app, nil
}
