package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationRun records one execution of the reconciliation engine
// against an external source of truth. Immutable after creation except for
// the count/status fields set at completion.
type ReconciliationRun struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	Source        ReconciliationSource    `gorm:"type:enum('Bank','Onchain','Provider','Manual');not null;index" json:"source"`
	Status        ReconciliationRunStatus `gorm:"size:20;not null;default:'OK';index" json:"status"`
	CheckedAt     time.Time               `gorm:"index;not null" json:"checked_at"`
	MatchedCount  int                     `gorm:"not null;default:0" json:"matched_count"`
	MismatchCount int                     `gorm:"not null;default:0" json:"mismatch_count"`
	LastError     *string                 `gorm:"type:text" json:"last_error"`
	TriggeredBy   string                  `gorm:"size:100" json:"triggered_by"`
	CorrelationId string                  `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReconciliationIssue is a detected discrepancy owned by exactly one run.
// Created by the engine, closed only by an explicit human resolution action;
// resolution never mutates the ledger.
type ReconciliationIssue struct {
	ID             int                       `gorm:"primary_key" json:"id"`
	RunId          int                       `gorm:"not null;index" json:"run_id"`
	IssueType      ReconciliationIssueType   `gorm:"size:30;not null;index" json:"issue_type"`
	ExternalRef    string                    `gorm:"size:255;index" json:"external_ref"`
	ExpectedAmount decimal.Decimal           `gorm:"type:decimal(20,4);default:0" json:"expected_amount"`
	ActualAmount   decimal.Decimal           `gorm:"type:decimal(20,4);default:0" json:"actual_amount"`
	Currency       string                    `gorm:"size:10" json:"currency"`
	Status         ReconciliationIssueStatus `gorm:"size:20;not null;default:'OPEN';index" json:"status"`
	ResolvedBy     *string                   `gorm:"size:100" json:"resolved_by"`
	ResolvedAt     *time.Time                `json:"resolved_at"`
	ResolutionNote *string                   `gorm:"type:text" json:"resolution_note"`
	CreatedAt      time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}
