package workflow

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateAnchor inserts a pending anchor record keyed by the canonical hash of
// (entityType, entityId, eventType, payload). The unique index makes the call
// idempotent: a retried call with identical payload is a no-op, a call with a
// changed payload hashes differently and creates a distinct anchor.
func CreateAnchor(ctx context.Context, tx *gorm.DB, entityType string, entityId int, eventType models.AnchorEventType, payload json.RawMessage) (*models.AnchorRecord, error) {
	if entityType == "" || entityId <= 0 {
		return nil, utils.NewValidationError("entity", "entity type and id are required")
	}
	if eventType == "" {
		return nil, utils.NewValidationError("eventType", "event type is required")
	}

	hash, err := utils.CanonicalHash(models.AnchorEventPayload{
		EntityType: entityType,
		EntityId:   entityId,
		EventType:  eventType,
		Payload:    payload,
	})
	if err != nil {
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	anchor := models.AnchorRecord{
		EntityType:    entityType,
		EntityId:      entityId,
		EventType:     eventType,
		CanonicalHash: hash,
		Payload:       payload,
		AnchorStatus:  models.AnchorStatusPending,
		CorrelationId: correlationId,
	}
	if err := tx.WithContext(ctx).Create(&anchor).Error; err == nil {
		return &anchor, nil
	} else if !isDuplicateKeyErr(err) {
		return nil, err
	}

	var existing models.AnchorRecord
	if err := tx.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND event_type = ? AND canonical_hash = ?",
			entityType, entityId, eventType, hash).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// RetryFailedAnchor is the operator action on a terminal FAILED anchor: reset
// to PENDING, clear the error, zero the attempt counter so the worker picks
// it up with fresh priority.
func RetryFailedAnchor(ctx context.Context, tx *gorm.DB, anchorId int) (*models.AnchorRecord, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var anchor models.AnchorRecord
	if err := tx.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", anchorId).First(&anchor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := models.AssertTransition(models.EntityKindAnchorRecord, string(anchor.AnchorStatus), string(models.AnchorStatusPending)); err != nil {
		return nil, err
	}
	err := tx.WithContext(ctx).Model(&models.AnchorRecord{}).
		Where("id = ?", anchor.ID).
		Updates(map[string]interface{}{
			"anchor_status": models.AnchorStatusPending,
			"attempts":      0,
			"last_error":    nil,
			"locked_at":     nil,
			"locked_by":     nil,
		}).Error
	if err != nil {
		return nil, err
	}
	anchor.AnchorStatus = models.AnchorStatusPending
	anchor.Attempts = 0
	anchor.LastError = nil

	logger := config.GetLogger()
	if logger != nil {
		operator, _ := utils.GetOperatorNameFromContext(ctx)
		logger.WithFields(logrus.Fields{
			"module":    "anchorWorkflow.go",
			"anchor_id": anchor.ID,
			"operator":  operator,
		}).Info("failed anchor reset to pending")
	}
	return &anchor, nil
}

// CreateBlockchainOp enqueues a chain-mutating job. The payload must match
// the opType's closed variant; EncodeOpPayload rejects anything else.
func CreateBlockchainOp(ctx context.Context, tx *gorm.DB, opType models.BlockchainOpType, entityType string, entityId int, chainId string, payload interface{}) (*models.BlockchainOp, error) {
	if entityType == "" || entityId <= 0 {
		return nil, utils.NewValidationError("entity", "entity type and id are required")
	}
	if chainId == "" {
		return nil, utils.NewValidationError("chainId", "chain id is required")
	}
	encoded, err := models.EncodeOpPayload(opType, payload)
	if err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	op := models.BlockchainOp{
		OpType:        opType,
		EntityType:    entityType,
		EntityId:      entityId,
		Status:        models.BlockchainOpStatusPending,
		Payload:       encoded,
		ChainId:       chainId,
		CorrelationId: correlationId,
	}
	if err := tx.WithContext(ctx).Create(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// StaleProcessingCutoff is how long an anchor may sit in PROCESSING before the
// worker treats its claim as abandoned (crashed instance) and reclaims it.
func StaleProcessingCutoff(now time.Time, lockTTL time.Duration) time.Time {
	return now.Add(-lockTTL)
}
