package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

// ChargeEvent is the normalized payment-provider event handed in by the
// webhook layer after signature verification.
type ChargeEvent struct {
	Provider  string `json:"provider" validate:"required"`
	Reference string `json:"reference" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Currency  string `json:"currency"`
	RawBody   []byte `json:"-"`
}

// beginReceipt inserts the webhook receipt row inside the unit of work. A
// duplicate key means the provider replayed this exact event (same provider,
// reference, and event type): returned as ErrDuplicateEvent, which callers
// treat as success-no-op.
func beginReceipt(ctx context.Context, tx *gorm.DB, provider, providerRef, eventType string, rawBody []byte) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	receipt := models.WebhookReceipt{
		Provider:      provider,
		ProviderRef:   providerRef,
		EventType:     eventType,
		RawEvent:      rawBody,
		CorrelationId: correlationId,
	}
	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return utils.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func markReceiptProcessed(ctx context.Context, tx *gorm.DB, provider, providerRef, eventType, note string) error {
	now := time.Now().UTC()
	return tx.WithContext(ctx).Model(&models.WebhookReceipt{}).
		Where("provider = ? AND provider_ref = ? AND event_type = ?", provider, providerRef, eventType).
		Updates(map[string]interface{}{
			"processed_at": &now,
			"process_note": &note,
		}).Error
}

// ProcessChargeSucceeded settles an escrow deposit: the subscription moves
// Committed -> Paid, both escrow legs are posted with an idempotency key
// derived from the provider reference, and the transition is queued for
// anchoring — all in one unit of work. Replays no-op at the receipt and at
// the ledger index, whichever is hit first.
func ProcessChargeSucceeded(ctx context.Context, db *gorm.DB, event ChargeEvent) error {
	logger := config.GetLogger()
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
				if logger != nil {
					logger.WithFields(logrus.Fields{
						"module":       "subscriptionWorkflow.go",
						"provider":     event.Provider,
						"provider_ref": event.Reference,
					}).Info("charge event replayed; no-op")
				}
				return nil
			}
			return err
		}

		sub, err := models.GetSubscriptionByPaymentRef(ctx, tx, event.Reference)
		if err != nil {
			return err
		}
		if !amount.Equal(sub.Amount) {
			return utils.NewValidationError("amount", "charged amount does not match subscription amount")
		}

		if _, err := models.UpdateSubscriptionStatus(ctx, tx, sub.ID, models.SubscriptionStatusPaid); err != nil {
			return err
		}

		idemKey := event.Provider + ":" + event.Reference
		debit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeEscrow,
			AccountRef:     escrowCashAccountRef,
			Direction:      models.EntryDirectionDebit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Subscription",
			EntityId:       sub.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "subscription deposit received",
		}
		credit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeEscrow,
			AccountRef:     investorEscrowAccountRef(sub.InvestorRef),
			Direction:      models.EntryDirectionCredit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Subscription",
			EntityId:       sub.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "subscription deposit received",
		}
		if _, err := PostBalancedLegs(ctx, tx, debit, credit); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"payment_ref": event.Reference,
			"amount":      amount.String(),
			"currency":    debit.Currency,
		})
		if err != nil {
			return err
		}
		if _, err := CreateAnchor(ctx, tx, "Subscription", sub.ID, models.AnchorEventSubscriptionPaid, payload); err != nil {
			return err
		}

		return markReceiptProcessed(ctx, tx, event.Provider, event.Reference, event.EventType, "subscription paid")
	})
}

// ProcessChargeRefunded reverses a paid subscription with offsetting entries.
// The original legs are never edited.
func ProcessChargeRefunded(ctx context.Context, db *gorm.DB, event ChargeEvent) error {
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

		sub, err := models.GetSubscriptionByPaymentRef(ctx, tx, refundSourceRef(event.Reference))
		if err != nil {
			return err
		}
		if _, err := models.UpdateSubscriptionStatus(ctx, tx, sub.ID, models.SubscriptionStatusRefunded); err != nil {
			return err
		}

		idemKey := event.Provider + ":" + event.Reference
		debit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeEscrow,
			AccountRef:     investorEscrowAccountRef(sub.InvestorRef),
			Direction:      models.EntryDirectionDebit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Subscription",
			EntityId:       sub.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "subscription deposit refunded",
		}
		credit := &models.LedgerEntry{
			LedgerType:     models.LedgerTypeEscrow,
			AccountRef:     escrowCashAccountRef,
			Direction:      models.EntryDirectionCredit,
			Amount:         amount,
			Currency:       event.Currency,
			EntityType:     "Subscription",
			EntityId:       sub.ID,
			ExternalRef:    event.Reference,
			IdempotencyKey: &idemKey,
			Description:    "subscription deposit refunded",
		}
		if _, err := PostBalancedLegs(ctx, tx, debit, credit); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"refund_ref": event.Reference,
			"amount":     amount.String(),
		})
		if err != nil {
			return err
		}
		if _, err := CreateAnchor(ctx, tx, "Subscription", sub.ID, models.AnchorEventSubscriptionRefunded, payload); err != nil {
			return err
		}
		return markReceiptProcessed(ctx, tx, event.Provider, event.Reference, event.EventType, "subscription refunded")
	})
}

const escrowCashAccountRef = "ESCROW:CASH"

func investorEscrowAccountRef(investorRef string) string {
	return "INVESTOR:" + investorRef
}

// Providers send refund references as "<orig>:refund" or a fresh reference
// with the original in tow; accept both by trimming the suffix.
func refundSourceRef(ref string) string {
	const suffix = ":refund"
	if len(ref) > len(suffix) && ref[len(ref)-len(suffix):] == suffix {
		return ref[:len(ref)-len(suffix)]
	}
	return ref
}
