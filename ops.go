package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"bitbucket.org/meridianassets/invest_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// opsAuthMiddleware gates the operator surface on a pre-shared key compared
// against its bcrypt hash. The operator name travels in a header so every
// action is attributable in logs and resolution records.
func opsAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := os.Getenv("OPS_API_KEY_HASH")
		if hash == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "operator surface not configured"})
			return
		}
		key := c.GetHeader("X-Ops-Key")
		if key == "" || utils.CompareOperatorKey(hash, key) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		operator := c.GetHeader("X-Ops-Operator")
		if operator == "" {
			operator = "ops"
		}
		c.Request = c.Request.WithContext(utils.SetOperatorInContext(c.Request.Context(), operator))
		c.Next()
	}
}

func retryAnchorHandler(anchorWorker *AnchorWorker) gin.HandlerFunc {
	return func(c *gin.Context) {
		anchorId, err := strconv.Atoi(c.Param("id"))
		if err != nil || anchorId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid anchor id"})
			return
		}
		anchor, err := workflow.RetryFailedAnchor(c.Request.Context(), config.GetDB(), anchorId)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "anchor not found"})
				return
			}
			if utils.IsIllegalTransition(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		anchorWorker.TriggerNow()
		c.JSON(http.StatusOK, gin.H{
			"anchor_id": anchor.ID,
			"status":    anchor.AnchorStatus,
			"attempts":  anchor.Attempts,
		})
	}
}

// startDistributionPayoutHandler moves an approved distribution into
// Processing and queues the payout op; the chain worker picks it up on its
// next tick (or right away, via the trigger).
func startDistributionPayoutHandler(opWorker *ChainOpWorker) gin.HandlerFunc {
	return func(c *gin.Context) {
		distributionId, err := strconv.Atoi(c.Param("id"))
		if err != nil || distributionId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid distribution id"})
			return
		}
		op, err := workflow.StartDistributionPayout(c.Request.Context(), config.GetDB(), distributionId)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "distribution not found"})
				return
			}
			if utils.IsIllegalTransition(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		opWorker.TriggerNow()
		c.JSON(http.StatusOK, gin.H{
			"op_id":   op.ID,
			"op_type": op.OpType,
			"status":  op.Status,
		})
	}
}

type trancheStatusRequest struct {
	Status string `json:"status"`
}

// updateTrancheStatusHandler is the admin path for the tranche lifecycle
// (open -> funding -> funded -> closed); the guard rejects everything else.
func updateTrancheStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		trancheId, err := strconv.Atoi(c.Param("id"))
		if err != nil || trancheId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tranche id"})
			return
		}
		var req trancheStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		tranche, err := models.UpdateTrancheStatus(c.Request.Context(), config.GetDB(), trancheId, models.TrancheStatus(req.Status))
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "tranche not found"})
				return
			}
			if utils.IsIllegalTransition(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tranche_id": tranche.ID,
			"status":     tranche.Status,
		})
	}
}

func listLedgerAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.ListActiveLedgerAccounts(c.Request.Context(), config.GetDB())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

func validLedgerType(t models.LedgerType) bool {
	switch t {
	case models.LedgerTypeEscrow, models.LedgerTypeOwnership, models.LedgerTypeDistribution,
		models.LedgerTypeTranche, models.LedgerTypeRedemption, models.LedgerTypeFee:
		return true
	}
	return false
}

// accountBalanceHandler reports the signed balance of one account as of a
// point in time. Reporting only; the posting path never reads balances.
func accountBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		ledger := models.LedgerType(c.DefaultQuery("ledger", string(models.LedgerTypeEscrow)))
		if !validLedgerType(ledger) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown ledger type"})
			return
		}
		asOf := time.Now().UTC()
		if v := c.Query("as_of"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be RFC3339"})
				return
			}
			asOf = parsed.UTC()
		}
		account, err := models.GetLedgerAccountByCode(c.Request.Context(), config.GetDB(), code)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		balance, err := workflow.AccountBalance(c.Request.Context(), config.GetDB(), account.Code, ledger, asOf)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"account":     account.Code,
			"ledger_type": ledger,
			"as_of":       asOf.Format(time.RFC3339),
			"balance":     balance.String(),
		})
	}
}

// issueEntriesHandler returns the ledger entries documenting a discrepancy's
// external reference, oldest first, so an operator can inspect both sides
// before resolving.
func issueEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		issueId, err := strconv.Atoi(c.Param("id"))
		if err != nil || issueId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue id"})
			return
		}
		db := config.GetDB()
		var issue models.ReconciliationIssue
		if err := db.WithContext(c.Request.Context()).Where("id = ?", issueId).First(&issue).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
			return
		}
		var run models.ReconciliationRun
		if err := db.WithContext(c.Request.Context()).Where("id = ?", issue.RunId).First(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		entries, err := workflow.EntriesByExternalRef(c.Request.Context(), db, workflow.SourceLedgerType(run.Source), issue.ExternalRef)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"issue_id":     issue.ID,
			"external_ref": issue.ExternalRef,
			"entries":      entries,
		})
	}
}

type resolveIssueRequest struct {
	Note string `json:"note"`
}

func resolveIssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		issueId, err := strconv.Atoi(c.Param("id"))
		if err != nil || issueId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue id"})
			return
		}
		var req resolveIssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		operator, _ := utils.GetOperatorNameFromContext(c.Request.Context())
		issue, err := workflow.ResolveIssue(c.Request.Context(), config.GetDB(), issueId, req.Note, operator)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
				return
			}
			if utils.IsValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if utils.IsIllegalTransition(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"issue_id":    issue.ID,
			"status":      issue.Status,
			"resolved_by": issue.ResolvedBy,
		})
	}
}

type triggerRunRequest struct {
	Source string `json:"source"`
}

func triggerReconciliationHandler(fetchers map[models.ReconciliationSource]workflow.SettledFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		source := models.ReconciliationSource(req.Source)
		fetcher, ok := fetchers[source]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("no fetcher configured for source %q", req.Source)})
			return
		}
		operator, _ := utils.GetOperatorNameFromContext(c.Request.Context())
		run, err := workflow.RunReconciliation(c.Request.Context(), config.GetDB(), source, fetcher, operator)
		if err != nil && run == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{
			"run_id":         run.ID,
			"source":         run.Source,
			"status":         run.Status,
			"matched_count":  run.MatchedCount,
			"mismatch_count": run.MismatchCount,
		}
		if err != nil {
			resp["error"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func exportReconciliationRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		runId, err := strconv.Atoi(c.Param("id"))
		if err != nil || runId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		db := config.GetDB()

		var run models.ReconciliationRun
		if err := db.WithContext(c.Request.Context()).Where("id = ?", runId).First(&run).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		var issues []models.ReconciliationIssue
		if err := db.WithContext(c.Request.Context()).
			Where("run_id = ?", runId).
			Order("id ASC").
			Find(&issues).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		sheet := "Sheet1"

		f.SetCellValue(sheet, "A1", "IssueId")
		f.SetCellValue(sheet, "B1", "IssueType")
		f.SetCellValue(sheet, "C1", "ExternalRef")
		f.SetCellValue(sheet, "D1", "ExpectedAmount")
		f.SetCellValue(sheet, "E1", "ActualAmount")
		f.SetCellValue(sheet, "F1", "Currency")
		f.SetCellValue(sheet, "G1", "Status")
		f.SetCellValue(sheet, "H1", "ResolvedBy")
		f.SetCellValue(sheet, "I1", "ResolutionNote")

		for i, issue := range issues {
			row := fmt.Sprint(i + 2)
			f.SetCellValue(sheet, "A"+row, issue.ID)
			f.SetCellValue(sheet, "B"+row, string(issue.IssueType))
			f.SetCellValue(sheet, "C"+row, issue.ExternalRef)
			f.SetCellValue(sheet, "D"+row, issue.ExpectedAmount.String())
			f.SetCellValue(sheet, "E"+row, issue.ActualAmount.String())
			f.SetCellValue(sheet, "F"+row, issue.Currency)
			f.SetCellValue(sheet, "G"+row, string(issue.Status))
			if issue.ResolvedBy != nil {
				f.SetCellValue(sheet, "H"+row, *issue.ResolvedBy)
			}
			if issue.ResolutionNote != nil {
				f.SetCellValue(sheet, "I"+row, *issue.ResolutionNote)
			}
		}

		filename := fmt.Sprintf("reconciliation-run-%d-%s.xlsx", run.ID, run.CheckedAt.Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "ops.go", "exportReconciliationRunHandler", "write xlsx", runId, err)
		}
	}
}

// triggerWorkersHandler pokes the background workers, useful after a manual
// fix when waiting for the next interval is annoying.
func triggerWorkersHandler(anchorWorker *AnchorWorker, opWorker *ChainOpWorker) gin.HandlerFunc {
	return func(c *gin.Context) {
		anchorWorker.TriggerNow()
		opWorker.TriggerNow()
		c.JSON(http.StatusOK, gin.H{"triggered_at": time.Now().UTC().Format(time.RFC3339)})
	}
}
