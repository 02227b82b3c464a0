package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"gorm.io/gorm"
)

// StartDistributionPayout moves an approved distribution into Processing and
// enqueues the payout for the chain worker. The chain call itself happens on
// the worker's schedule, never inside this unit of work.
func StartDistributionPayout(ctx context.Context, db *gorm.DB, distributionId int) (*models.BlockchainOp, error) {
	var op *models.BlockchainOp
	err := RunInUnit(ctx, db, func(tx *gorm.DB) error {
		dist, err := models.UpdateDistributionStatus(ctx, tx, distributionId, models.DistributionStatusProcessing)
		if err != nil {
			return err
		}
		tranche, err := models.GetTranche(ctx, tx, dist.TrancheId)
		if err != nil {
			return err
		}
		if tranche.TokenAddress == nil || *tranche.TokenAddress == "" {
			return utils.NewValidationError("tranche", "tranche has no token address; deploy before distributing")
		}
		op, err = CreateBlockchainOp(ctx, tx, models.BlockchainOpTypePayout, "Distribution", dist.ID, tranche.ChainId, models.PayoutPayload{
			TokenAddress: *tranche.TokenAddress,
			Amount:       dist.Amount,
			Currency:     dist.Currency,
			PayoutRef:    dist.PayoutRef,
		})
		return err
	})
	return op, err
}

// ProcessPayoutSucceeded records a provider-confirmed distribution payout:
// Processing -> Paid, distribution legs posted, transition anchored.
func ProcessPayoutSucceeded(ctx context.Context, db *gorm.DB, event ChargeEvent, distributionId int) error {
	if err := validate.Struct(event); err != nil {
		return utils.NewValidationError("event", err.Error())
	}
	amount, err := utils.ParseAmount(event.Amount)
	if err != nil {
		return err
	}
	if err := utils.RequirePositiveAmount(amount); err != nil {
		return err
	}

	return RunInUnit(ctx, db, func(tx *gorm.DB) error {
		if err := beginReceipt(ctx, tx, event.Provider, event.Reference, event.EventType, event.RawBody); err != nil {
			if errors.Is(err, utils.ErrDuplicateEvent) {
				return nil
			}
			return err
		}

		dist, err := models.UpdateDistributionStatus(ctx, tx, distributionId, models.DistributionStatusPaid)
		if err != nil {
			return err
		}

		idemKey := event.Provider + ":" + event.Reference
		debit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeDistribution,
			AccountRef:     "DISTRIBUTION:PAYABLE",
			Direction:      models.EntryDirectionDebit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Distribution",
			EntityId:       dist.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "distribution payout settled",
		}
		credit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeDistribution,
			AccountRef:     "DISTRIBUTION:CASH",
			Direction:      models.EntryDirectionCredit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Distribution",
			EntityId:       dist.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "distribution payout settled",
		}
		if _, err := PostBalancedLegs(ctx, tx, debit, credit); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"payout_ref": event.Reference,
			"amount":     amount.String(),
		})
		if err != nil {
			return err
		}
		if _, err := CreateAnchor(ctx, tx, "Distribution", dist.ID, models.AnchorEventDistributionPaid, payload); err != nil {
			return err
		}
		return markReceiptProcessed(ctx, tx, event.Provider, event.Reference, event.EventType, "distribution paid")
	})
}
