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

// ChainOpWorker executes queued chain-mutating operations (mint, burn,
// payout, whitelist, ...). Poll order is (retry_count, created_at) so a
// repeatedly-failing op never starves fresh work. The gateway call happens
// outside any transaction; SUBMITTED rows with a stale lock are reclaimed
// after LockTTL (the gateway deduplicates resubmission on its side).
type ChainOpWorker struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Chain    chainrpc.Submitter
	WorkerID string

	BatchSize  int
	Interval   time.Duration
	LockTTL    time.Duration
	MaxRetries int

	tickMu  sync.Mutex
	trigger chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func NewChainOpWorker(db *gorm.DB, logger *logrus.Logger, chain chainrpc.Submitter) *ChainOpWorker {
	return &ChainOpWorker{
		DB:         db,
		Logger:     logger,
		Chain:      chain,
		WorkerID:   uuid.NewString(),
		BatchSize:  10,
		Interval:   20 * time.Second,
		LockTTL:    5 * time.Minute,
		MaxRetries: 6,
		trigger:    make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
}

func (w *ChainOpWorker) Run(ctx context.Context) {
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

func (w *ChainOpWorker) Stop() {
	w.once.Do(func() { close(w.quit) })
}

func (w *ChainOpWorker) TriggerNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *ChainOpWorker) processOnce(ctx context.Context) {
	if !w.tickMu.TryLock() {
		return
	}
	defer w.tickMu.Unlock()

	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, "lock:chainop-worker", w.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	err := workflow.WithWorkerLock(ctx, w.DB, "chainop-worker", func() error {
		for _, op := range w.claimBatch(ctx) {
			if op.Status == models.BlockchainOpStatusFailed {
				continue
			}
			w.submitOne(ctx, op)
		}
		return nil
	})
	if err != nil && err != workflow.ErrWorkerLockHeld {
		config.LogError(w.Logger, "chainop_worker.go", "processOnce", "worker lock", nil, err)
	}
}

func (w *ChainOpWorker) claimBatch(ctx context.Context) []models.BlockchainOp {
	now := time.Now().UTC()
	staleBefore := now.Add(-w.LockTTL)

	var claimed []models.BlockchainOp
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("deleted_at IS NULL").
			Where(`
				status = ?
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.BlockchainOpStatusPending, models.BlockchainOpStatusSubmitted, staleBefore).
			Order("retry_count ASC, created_at ASC").
			Limit(w.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if w.MaxRetries > 0 && claimed[i].RetryCount >= w.MaxRetries {
				msg := fmt.Sprintf("max submission retries exceeded (%d)", w.MaxRetries)
				claimed[i].Status = models.BlockchainOpStatusFailed
				if err := tx.Model(&models.BlockchainOp{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":     models.BlockchainOpStatusFailed,
					"last_error": &msg,
					"locked_at":  nil,
					"locked_by":  nil,
				}).Error; err != nil {
					return err
				}
				w.alertFailed(ctx, claimed[i], msg)
				continue
			}
			claimed[i].Status = models.BlockchainOpStatusSubmitted
			claimed[i].RetryCount = claimed[i].RetryCount + 1
			if err := tx.Model(&models.BlockchainOp{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":       models.BlockchainOpStatusSubmitted,
				"submitted_at": &now,
				"locked_at":    &now,
				"locked_by":    &w.WorkerID,
				"retry_count":  gorm.Expr("retry_count + 1"),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(w.Logger, "chainop_worker.go", "claimBatch", "claim transaction", nil, err)
		return nil
	}
	return claimed
}

func (w *ChainOpWorker) submitOne(ctx context.Context, op models.BlockchainOp) {
	result, err := w.Chain.SubmitOperation(ctx, chainrpc.SubmitOpRequest{
		OpId:    op.ID,
		OpType:  string(op.OpType),
		ChainId: op.ChainId,
		Payload: op.Payload,
	})
	if err != nil {
		w.markAttemptFailed(ctx, op, err)
		return
	}

	now := time.Now().UTC()
	updateErr := w.DB.WithContext(ctx).Model(&models.BlockchainOp{}).
		Where("id = ?", op.ID).
		Updates(map[string]interface{}{
			"status":       models.BlockchainOpStatusConfirmed,
			"tx_hash":      &result.TxHash,
			"confirmed_at": &now,
			"last_error":   nil,
			"locked_at":    nil,
			"locked_by":    nil,
		}).Error
	if updateErr != nil {
		config.LogError(w.Logger, "chainop_worker.go", "submitOne", "mark confirmed", op.ID, updateErr)
		return
	}
	w.Logger.WithFields(logrus.Fields{
		"module":         "chainop_worker.go",
		"op_id":          op.ID,
		"op_type":        op.OpType,
		"entity_type":    op.EntityType,
		"entity_id":      op.EntityId,
		"tx_hash":        result.TxHash,
		"correlation_id": op.CorrelationId,
	}).Info("blockchain operation confirmed")
}

func (w *ChainOpWorker) markAttemptFailed(ctx context.Context, op models.BlockchainOp, submitErr error) {
	msg := submitErr.Error()
	status := models.BlockchainOpStatusPending
	if w.MaxRetries > 0 && op.RetryCount >= w.MaxRetries {
		status = models.BlockchainOpStatusFailed
	}
	err := w.DB.WithContext(ctx).Model(&models.BlockchainOp{}).
		Where("id = ?", op.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": &msg,
			"locked_at":  nil,
			"locked_by":  nil,
		}).Error
	if err != nil {
		config.LogError(w.Logger, "chainop_worker.go", "markAttemptFailed", "record failure", op.ID, err)
		return
	}
	w.Logger.WithFields(logrus.Fields{
		"module":         "chainop_worker.go",
		"op_id":          op.ID,
		"op_type":        op.OpType,
		"retry_count":    op.RetryCount,
		"status":         status,
		"transient":      chainrpc.IsTransient(submitErr),
		"correlation_id": op.CorrelationId,
	}).Error("blockchain operation submission failed: " + msg)
	if status == models.BlockchainOpStatusFailed {
		w.alertFailed(ctx, op, msg)
	}
}

func (w *ChainOpWorker) alertFailed(ctx context.Context, op models.BlockchainOp, detail string) {
	_ = config.PublishOpsAlert(ctx, config.OpsAlert{
		Kind:          "chain_op_failed",
		EntityType:    op.EntityType,
		EntityId:      op.EntityId,
		Detail:        detail,
		CorrelationId: op.CorrelationId,
		RaisedAt:      time.Now().UTC(),
	})
}
