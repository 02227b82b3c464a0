package workflow

import (
	"context"
	"testing"

	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
)

func validEntry() *models.LedgerEntry {
	key := "paygate:PAY-1"
	return &models.LedgerEntry{
		LedgerType:     models.LedgerTypeEscrow,
		AccountRef:     "ESCROW:CASH",
		Direction:      models.EntryDirectionCredit,
		Amount:         decimal.NewFromInt(500),
		Currency:       "USD",
		EntityType:     "Subscription",
		EntityId:       7,
		ExternalRef:    "PAY-1",
		IdempotencyKey: &key,
	}
}

// All of these are rejected before any store access, so a nil handle proves
// the validation happens first.
func TestPostEntry_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.LedgerEntry)
	}{
		{"missing ledger type", func(e *models.LedgerEntry) { e.LedgerType = "" }},
		{"missing account ref", func(e *models.LedgerEntry) { e.AccountRef = "" }},
		{"bad direction", func(e *models.LedgerEntry) { e.Direction = "Sideways" }},
		{"empty direction", func(e *models.LedgerEntry) { e.Direction = "" }},
		{"missing entity type", func(e *models.LedgerEntry) { e.EntityType = "" }},
		{"missing entity id", func(e *models.LedgerEntry) { e.EntityId = 0 }},
		{"zero amount", func(e *models.LedgerEntry) { e.Amount = decimal.Zero }},
		{"negative amount", func(e *models.LedgerEntry) { e.Amount = decimal.NewFromInt(-500) }},
	}
	for _, tc := range cases {
		entry := validEntry()
		tc.mutate(entry)
		_, _, err := PostEntry(context.Background(), nil, entry)
		if err == nil {
			t.Fatalf("%s: PostEntry should reject the entry", tc.name)
		}
		if !utils.IsValidationError(err) {
			t.Fatalf("%s: expected ValidationError, got %T (%v)", tc.name, err, err)
		}
	}
}

func TestPostEntry_NilEntryRejected(t *testing.T) {
	_, _, err := PostEntry(context.Background(), nil, nil)
	if err == nil || !utils.IsValidationError(err) {
		t.Fatalf("nil entry: expected ValidationError, got %v", err)
	}
}

func TestPostBalancedLegs_RejectsUnbalancedLegs(t *testing.T) {
	debit := validEntry()
	debit.Direction = models.EntryDirectionDebit
	credit := validEntry()
	credit.Amount = decimal.NewFromInt(499)
	if _, err := PostBalancedLegs(context.Background(), nil, debit, credit); err == nil {
		t.Fatal("unequal leg amounts should be rejected")
	} else if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
}

func TestPostBalancedLegs_RejectsWrongDirections(t *testing.T) {
	cases := []struct {
		name      string
		debitDir  models.EntryDirection
		creditDir models.EntryDirection
	}{
		{"both credit", models.EntryDirectionCredit, models.EntryDirectionCredit},
		{"both debit", models.EntryDirectionDebit, models.EntryDirectionDebit},
		{"swapped", models.EntryDirectionCredit, models.EntryDirectionDebit},
	}
	for _, tc := range cases {
		debit := validEntry()
		debit.Direction = tc.debitDir
		credit := validEntry()
		credit.Direction = tc.creditDir
		if _, err := PostBalancedLegs(context.Background(), nil, debit, credit); err == nil {
			t.Fatalf("%s: should be rejected", tc.name)
		} else if !utils.IsValidationError(err) {
			t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
		}
	}
}
