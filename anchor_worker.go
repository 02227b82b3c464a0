package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/meridianassets/invest_backend/chainrpc"
	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnchorWorker drains pending anchor records onto the chain gateway.
// Two-phase per record: claim + mark PROCESSING in one transaction, submit
// outside any transaction, then record the outcome in a second write. A crash
// between the phases leaves a PROCESSING row whose lock goes stale and is
// reclaimed after LockTTL.
type AnchorWorker struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Chain    chainrpc.Submitter
	WorkerID string

	BatchSize   int
	Interval    time.Duration
	LockTTL     time.Duration
	MaxAttempts int

	tickMu  sync.Mutex
	trigger chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func NewAnchorWorker(db *gorm.DB, logger *logrus.Logger, chain chainrpc.Submitter) *AnchorWorker {
	return &AnchorWorker{
		DB:          db,
		Logger:      logger,
		Chain:       chain,
		WorkerID:    uuid.NewString(),
		BatchSize:   25,
		Interval:    15 * time.Second,
		LockTTL:     2 * time.Minute,
		MaxAttempts: 8,
		trigger:     make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
}

func (w *AnchorWorker) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		default:
		}
		w.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-w.trigger:
		case <-time.After(w.Interval):
		}
	}
}

// Stop ends the loop after any in-flight tick finishes. Safe to call twice.
func (w *AnchorWorker) Stop() {
	w.once.Do(func() { close(w.quit) })
}

// TriggerNow wakes the loop without waiting for the next interval.
func (w *AnchorWorker) TriggerNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *AnchorWorker) processOnce(ctx context.Context) {
	// Non-reentrancy inside one instance: skip the tick if the previous one
	// is still running.
	if !w.tickMu.TryLock() {
		return
	}
	defer w.tickMu.Unlock()

	// Best-effort single-flight across instances. SKIP LOCKED claiming below
	// keeps correctness when Redis is down; the lock just avoids wasted polls.
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, "lock:anchor-worker", w.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	// Advisory lock on the store itself: single-flight across instances even
	// when Redis is down. SKIP LOCKED keeps claims correct regardless.
	err := workflow.WithWorkerLock(ctx, w.DB, "anchor-worker", func() error {
		for _, rec := range w.claimBatch(ctx) {
			if rec.AnchorStatus == models.AnchorStatusFailed {
				continue
			}
			w.submitOne(ctx, rec)
		}
		return nil
	})
	if err != nil && err != workflow.ErrWorkerLockHeld {
		config.LogError(w.Logger, "anchor_worker.go", "processOnce", "worker lock", nil, err)
	}
}

// claimBatch selects eligible anchors and marks them PROCESSING under
// FOR UPDATE SKIP LOCKED so concurrent instances never double-claim. Rows
// already at the attempt ceiling are marked FAILED here instead of claimed.
func (w *AnchorWorker) claimBatch(ctx context.Context) []models.AnchorRecord {
	now := time.Now().UTC()
	staleBefore := workflow.StaleProcessingCutoff(now, w.LockTTL)

	var claimed []models.AnchorRecord
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("deleted_at IS NULL").
			Where(`
				anchor_status = ?
				OR
				(anchor_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.AnchorStatusPending, models.AnchorStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(w.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if w.MaxAttempts > 0 && claimed[i].Attempts >= w.MaxAttempts {
				msg := fmt.Sprintf("max anchor attempts exceeded (%d)", w.MaxAttempts)
				claimed[i].AnchorStatus = models.AnchorStatusFailed
				if err := tx.Model(&models.AnchorRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"anchor_status": models.AnchorStatusFailed,
					"last_error":    &msg,
					"locked_at":     nil,
					"locked_by":     nil,
				}).Error; err != nil {
					return err
				}
				w.alertFailed(ctx, claimed[i], msg)
				continue
			}
			claimed[i].AnchorStatus = models.AnchorStatusProcessing
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.AnchorRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"anchor_status": models.AnchorStatusProcessing,
				"locked_at":     &now,
				"locked_by":     &w.WorkerID,
				"attempts":      gorm.Expr("attempts + 1"),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(w.Logger, "anchor_worker.go", "claimBatch", "claim transaction", nil, err)
		return nil
	}
	return claimed
}

func (w *AnchorWorker) submitOne(ctx context.Context, rec models.AnchorRecord) {
	result, err := w.Chain.SubmitAnchor(ctx, chainrpc.SubmitAnchorRequest{
		EntityType:    rec.EntityType,
		EntityId:      rec.EntityId,
		EventType:     string(rec.EventType),
		CanonicalHash: rec.CanonicalHash,
		Payload:       rec.Payload,
	})
	if err != nil {
		w.markAttemptFailed(ctx, rec, err)
		return
	}

	now := time.Now().UTC()
	updateErr := w.DB.WithContext(ctx).Model(&models.AnchorRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"anchor_status": models.AnchorStatusAnchored,
			"tx_hash":       &result.TxHash,
			"chain_ref":     result.ChainRef,
			"anchored_at":   &now,
			"last_error":    nil,
			"locked_at":     nil,
			"locked_by":     nil,
		}).Error
	if updateErr != nil {
		config.LogError(w.Logger, "anchor_worker.go", "submitOne", "mark anchored", rec.ID, updateErr)
		return
	}
	w.Logger.WithFields(logrus.Fields{
		"module":         "anchor_worker.go",
		"anchor_id":      rec.ID,
		"entity_type":    rec.EntityType,
		"entity_id":      rec.EntityId,
		"event_type":     rec.EventType,
		"tx_hash":        result.TxHash,
		"correlation_id": rec.CorrelationId,
	}).Info("anchor confirmed on chain")
}

// markAttemptFailed requeues the anchor as PENDING with the error recorded;
// the claim in the next tick bumps attempts. At the ceiling the row goes
// FAILED and stays there until an operator retries it.
func (w *AnchorWorker) markAttemptFailed(ctx context.Context, rec models.AnchorRecord, submitErr error) {
	msg := submitErr.Error()
	status := models.AnchorStatusPending
	if w.MaxAttempts > 0 && rec.Attempts >= w.MaxAttempts {
		status = models.AnchorStatusFailed
	}
	err := w.DB.WithContext(ctx).Model(&models.AnchorRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"anchor_status": status,
			"last_error":    &msg,
			"locked_at":     nil,
			"locked_by":     nil,
		}).Error
	if err != nil {
		config.LogError(w.Logger, "anchor_worker.go", "markAttemptFailed", "record failure", rec.ID, err)
		return
	}
	w.Logger.WithFields(logrus.Fields{
		"module":         "anchor_worker.go",
		"anchor_id":      rec.ID,
		"attempt":        rec.Attempts,
		"status":         status,
		"transient":      chainrpc.IsTransient(submitErr),
		"correlation_id": rec.CorrelationId,
	}).Error("anchor submission failed: " + msg)
	if status == models.AnchorStatusFailed {
		w.alertFailed(ctx, rec, msg)
	}
}

func (w *AnchorWorker) alertFailed(ctx context.Context, rec models.AnchorRecord, detail string) {
	_ = config.PublishOpsAlert(ctx, config.OpsAlert{
		Kind:          "anchor_failed",
		EntityType:    rec.EntityType,
		EntityId:      rec.EntityId,
		Detail:        detail,
		CorrelationId: rec.CorrelationId,
		RaisedAt:      time.Now().UTC(),
	})
}
