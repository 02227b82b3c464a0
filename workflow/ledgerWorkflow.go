package workflow

import (
	"context"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

// PostEntry appends one ledger leg inside the caller's unit of work.
//
// When entry.IdempotencyKey is set, the insert races safely against replays:
// the unique (ledger_type, account_ref, idempotency_key) index turns the
// second insert into a duplicate-key error, and the existing row is returned
// with replayed=true. The caller treats that as success-no-op.
//
// Double-entry discipline is enforced by convention at the call site (each
// business event posts a debit and a credit leg of equal amount); the
// reconciliation engine is the backstop that verifies the balance holds in
// aggregate.
func PostEntry(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	if entry == nil {
		return nil, false, utils.NewValidationError("entry", "entry is required")
	}
	if entry.LedgerType == "" {
		return nil, false, utils.NewValidationError("ledgerType", "ledger type is required")
	}
	if entry.AccountRef == "" {
		return nil, false, utils.NewValidationError("accountRef", "account ref is required")
	}
	if entry.Direction != models.EntryDirectionDebit && entry.Direction != models.EntryDirectionCredit {
		return nil, false, utils.NewValidationError("direction", "direction must be Debit or Credit")
	}
	if entry.EntityType == "" || entry.EntityId <= 0 {
		return nil, false, utils.NewValidationError("entity", "entity type and id are required")
	}
	if err := utils.RequirePositiveAmount(entry.Amount); err != nil {
		return nil, false, err
	}
	if entry.Currency == "" {
		entry.Currency = defaultCurrency
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}
	if entry.IdempotencyKey != nil && *entry.IdempotencyKey == "" {
		entry.IdempotencyKey = nil
	}

	err := tx.WithContext(ctx).Create(entry).Error
	if err == nil {
		return entry, false, nil
	}
	if !isDuplicateKeyErr(err) || entry.IdempotencyKey == nil {
		return nil, false, err
	}

	// Replay: return the already-posted row.
	var existing models.LedgerEntry
	if ferr := tx.WithContext(ctx).
		Where("ledger_type = ? AND account_ref = ? AND idempotency_key = ?",
			entry.LedgerType, entry.AccountRef, *entry.IdempotencyKey).
		First(&existing).Error; ferr != nil {
		return nil, false, ferr
	}

	logger := config.GetLogger()
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":          "ledgerWorkflow.go",
			"ledger_type":     entry.LedgerType,
			"account_ref":     entry.AccountRef,
			"idempotency_key": *entry.IdempotencyKey,
			"entry_id":        existing.ID,
		}).Info("duplicate posting detected; returning existing entry")
	}
	return &existing, true, nil
}

// PostBalancedLegs posts the debit and credit legs of one business event.
// Both legs carry the same idempotency key; the unique index is per
// (ledger_type, account_ref), so the two legs do not collide with each other,
// only with their own replays.
func PostBalancedLegs(ctx context.Context, tx *gorm.DB, debit *models.LedgerEntry, credit *models.LedgerEntry) (bool, error) {
	if debit.Direction != models.EntryDirectionDebit || credit.Direction != models.EntryDirectionCredit {
		return false, utils.NewValidationError("direction", "legs must be one debit and one credit")
	}
	if !debit.Amount.Equal(credit.Amount) {
		return false, utils.NewValidationError("amount", "debit and credit legs must carry equal amounts")
	}
	_, debitReplayed, err := PostEntry(ctx, tx, debit)
	if err != nil {
		return false, err
	}
	_, creditReplayed, err := PostEntry(ctx, tx, credit)
	if err != nil {
		return false, err
	}
	return debitReplayed && creditReplayed, nil
}

// AccountBalance sums signed amounts (credit positive, debit negative) for an
// account ref within a ledger as of the given time. Used by reconciliation
// and reporting, never by the posting path (avoids read-then-write races).
func AccountBalance(ctx context.Context, tx *gorm.DB, accountRef string, ledgerType models.LedgerType, asOf time.Time) (decimal.Decimal, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var result struct {
		Balance decimal.Decimal
	}
	err := tx.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE WHEN direction = 'Credit' THEN amount ELSE -amount END), 0) AS balance
		FROM ledger_entries
		WHERE account_ref = ? AND ledger_type = ? AND posted_at <= ?
	`, accountRef, ledgerType, asOf).Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Balance, nil
}

// EntriesByExternalRef returns the entries documenting one source-system
// reference, oldest first.
func EntriesByExternalRef(ctx context.Context, tx *gorm.DB, ledgerType models.LedgerType, externalRef string) ([]models.LedgerEntry, error) {
	if tx == nil {
		tx = config.GetDB()
	}
	var entries []models.LedgerEntry
	err := tx.WithContext(ctx).
		Where("ledger_type = ? AND external_ref = ?", ledgerType, externalRef).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
