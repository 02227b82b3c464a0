package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExternalRecord is one settled record from an external source of truth
// (bank statement line, on-chain transfer, provider settlement row).
type ExternalRecord struct {
	ExternalRef string
	Amount      decimal.Decimal
	Currency    string
	SettledAt   time.Time
}

// SettledFetcher is the boundary to the external source. Fetch failures fail
// the run; they never fabricate issues.
type SettledFetcher interface {
	FetchSettled(ctx context.Context, source models.ReconciliationSource) ([]ExternalRecord, error)
}

// SourceLedgerType scopes a run: each source is reconciled against the ledger
// that documents its money movements.
func SourceLedgerType(source models.ReconciliationSource) models.LedgerType {
	switch source {
	case models.ReconciliationSourceOnchain:
		return models.LedgerTypeOwnership
	case models.ReconciliationSourceProvider:
		return models.LedgerTypeDistribution
	default:
		return models.LedgerTypeEscrow
	}
}

// DiffResult is the outcome of one ledger-vs-external comparison. Issues carry
// no RunId yet; the caller stamps it when persisting.
type DiffResult struct {
	Matched int
	Issues  []models.ReconciliationIssue
}

// DiffLedgerAgainstExternal compares external settled records with ledger
// entries by external ref. The ledger side of a reference is its credit-leg
// total (the leg documenting the received amount); the debit leg mirrors it
// by call-site convention.
//
// Pure function: no I/O, deterministic, ordered by the external input then by
// first appearance of orphaned refs.
func DiffLedgerAgainstExternal(external []ExternalRecord, entries []models.LedgerEntry) DiffResult {
	creditTotals := make(map[string]decimal.Decimal)
	currencies := make(map[string]string)
	refOrder := make([]string, 0)
	for _, e := range entries {
		if e.ExternalRef == "" {
			continue
		}
		if _, seen := creditTotals[e.ExternalRef]; !seen {
			creditTotals[e.ExternalRef] = decimal.Zero
			refOrder = append(refOrder, e.ExternalRef)
			currencies[e.ExternalRef] = e.Currency
		}
		if e.Direction == models.EntryDirectionCredit {
			creditTotals[e.ExternalRef] = creditTotals[e.ExternalRef].Add(e.Amount)
		}
	}

	var result DiffResult
	externalSeen := make(map[string]bool, len(external))
	for _, ext := range external {
		externalSeen[ext.ExternalRef] = true
		total, found := creditTotals[ext.ExternalRef]
		if !found {
			result.Issues = append(result.Issues, models.ReconciliationIssue{
				IssueType:      models.IssueTypeMissingLedger,
				ExternalRef:    ext.ExternalRef,
				ExpectedAmount: ext.Amount,
				Currency:       ext.Currency,
				Status:         models.IssueStatusOpen,
			})
			continue
		}
		if !total.Equal(ext.Amount) {
			result.Issues = append(result.Issues, models.ReconciliationIssue{
				IssueType:      models.IssueTypeAmountMismatch,
				ExternalRef:    ext.ExternalRef,
				ExpectedAmount: ext.Amount,
				ActualAmount:   total,
				Currency:       ext.Currency,
				Status:         models.IssueStatusOpen,
			})
			continue
		}
		result.Matched++
	}

	for _, ref := range refOrder {
		if externalSeen[ref] {
			continue
		}
		result.Issues = append(result.Issues, models.ReconciliationIssue{
			IssueType:    models.IssueTypeOrphanLedger,
			ExternalRef:  ref,
			ActualAmount: creditTotals[ref],
			Currency:     currencies[ref],
			Status:       models.IssueStatusOpen,
		})
	}
	return result
}

// runOutcome finalizes a completed comparison: any issue at all makes the
// run a MISMATCH. FAILED is reserved for a broken external fetch and RUNNING
// for a run still (or forever) in flight.
func runOutcome(issueCount int) models.ReconciliationRunStatus {
	if issueCount > 0 {
		return models.ReconciliationRunStatusMismatch
	}
	return models.ReconciliationRunStatusOk
}

// RunReconciliation executes one comparison pass. Runs never mutate ledger
// data, so re-execution is safe; each invocation produces a new run row.
func RunReconciliation(ctx context.Context, db *gorm.DB, source models.ReconciliationSource, fetcher SettledFetcher, triggeredBy string) (*models.ReconciliationRun, error) {
	if db == nil {
		db = config.GetDB()
	}
	logger := config.GetLogger()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	// Born RUNNING: a crash before completion leaves a visibly unfinished
	// run, never a false OK.
	run := models.ReconciliationRun{
		Source:        source,
		Status:        models.ReconciliationRunStatusRunning,
		CheckedAt:     time.Now().UTC(),
		TriggeredBy:   triggeredBy,
		CorrelationId: correlationId,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}

	external, err := fetcher.FetchSettled(ctx, source)
	if err != nil {
		errMsg := err.Error()
		_ = db.WithContext(ctx).Model(&models.ReconciliationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":     models.ReconciliationRunStatusFailed,
				"last_error": &errMsg,
			}).Error
		run.Status = models.ReconciliationRunStatusFailed
		run.LastError = &errMsg
		config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliation", "FetchSettled", source, err)
		return &run, &utils.TransientExternalError{Source: string(source), Err: err}
	}

	ledgerType := SourceLedgerType(source)
	var entries []models.LedgerEntry
	if err := db.WithContext(ctx).
		Where("ledger_type = ? AND external_ref <> ''", ledgerType).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	diff := DiffLedgerAgainstExternal(external, entries)

	err = RunInUnit(ctx, db, func(tx *gorm.DB) error {
		for i := range diff.Issues {
			diff.Issues[i].RunId = run.ID
			if err := tx.Create(&diff.Issues[i]).Error; err != nil {
				return err
			}
		}
		status := runOutcome(len(diff.Issues))
		run.Status = status
		run.MatchedCount = diff.Matched
		run.MismatchCount = len(diff.Issues)
		return tx.Model(&models.ReconciliationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":         status,
				"matched_count":  diff.Matched,
				"mismatch_count": len(diff.Issues),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":         "reconciliationWorkflow.go",
			"run_id":         run.ID,
			"source":         source,
			"matched_count":  run.MatchedCount,
			"mismatch_count": run.MismatchCount,
			"status":         run.Status,
		}).Info("reconciliation run completed")
	}

	if run.Status == models.ReconciliationRunStatusMismatch {
		// Integrity violations are never auto-corrected; surface and wait for
		// a human.
		if aerr := config.PublishOpsAlert(ctx, config.OpsAlert{
			Kind:          "reconciliation_mismatch",
			EntityType:    "ReconciliationRun",
			EntityId:      run.ID,
			Detail:        fmt.Sprintf("source=%s issues=%d", source, run.MismatchCount),
			CorrelationId: correlationId,
		}); aerr != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliation", "PublishOpsAlert", run.ID, aerr)
		}
	}
	return &run, nil
}

// ResolveIssue records an operator's acknowledgment of a discrepancy. It only
// records; it never touches the ledger.
func ResolveIssue(ctx context.Context, tx *gorm.DB, issueId int, note string, resolvedBy string) (*models.ReconciliationIssue, error) {
	if note == "" {
		return nil, utils.NewValidationError("note", "a resolution note is required")
	}
	if tx == nil {
		tx = config.GetDB()
	}
	var issue models.ReconciliationIssue
	if err := tx.WithContext(ctx).Where("id = ?", issueId).First(&issue).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := models.AssertTransition(models.EntityKindReconciliationIssue, string(issue.Status), string(models.IssueStatusResolved)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err := tx.WithContext(ctx).Model(&models.ReconciliationIssue{}).
		Where("id = ?", issue.ID).
		Updates(map[string]interface{}{
			"status":          models.IssueStatusResolved,
			"resolved_by":     &resolvedBy,
			"resolved_at":     &now,
			"resolution_note": &note,
		}).Error
	if err != nil {
		return nil, err
	}
	issue.Status = models.IssueStatusResolved
	issue.ResolvedBy = &resolvedBy
	issue.ResolvedAt = &now
	issue.ResolutionNote = &note
	return &issue, nil
}
