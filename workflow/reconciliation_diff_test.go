package workflow

import (
	"testing"
	"time"

	"bitbucket.org/meridianassets/invest_backend/models"
	"github.com/shopspring/decimal"
)

func extRecord(ref, amount, currency string) ExternalRecord {
	d, _ := decimal.NewFromString(amount)
	return ExternalRecord{
		ExternalRef: ref,
		Amount:      d,
		Currency:    currency,
		SettledAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func creditEntry(ref, amount, currency string) models.LedgerEntry {
	d, _ := decimal.NewFromString(amount)
	return models.LedgerEntry{
		LedgerType:  models.LedgerTypeEscrow,
		AccountRef:  "INVESTOR:" + ref,
		Direction:   models.EntryDirectionCredit,
		Amount:      d,
		Currency:    currency,
		ExternalRef: ref,
	}
}

func debitEntry(ref, amount, currency string) models.LedgerEntry {
	e := creditEntry(ref, amount, currency)
	e.AccountRef = "ESCROW:CASH"
	e.Direction = models.EntryDirectionDebit
	return e
}

func TestDiff_AllMatched(t *testing.T) {
	external := []ExternalRecord{
		extRecord("PAY-1", "20000", "USD"),
		extRecord("PAY-2", "500.50", "USD"),
	}
	entries := []models.LedgerEntry{
		debitEntry("PAY-1", "20000", "USD"),
		creditEntry("PAY-1", "20000", "USD"),
		debitEntry("PAY-2", "500.50", "USD"),
		creditEntry("PAY-2", "500.50", "USD"),
	}
	result := DiffLedgerAgainstExternal(external, entries)
	if result.Matched != 2 {
		t.Fatalf("matched = %d, want 2", result.Matched)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("issues = %d, want 0: %+v", len(result.Issues), result.Issues)
	}
}

func TestDiff_MissingLedger(t *testing.T) {
	external := []ExternalRecord{extRecord("PAY-9", "100", "USD")}
	result := DiffLedgerAgainstExternal(external, nil)
	if len(result.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.IssueType != models.IssueTypeMissingLedger {
		t.Fatalf("issue type = %s, want %s", issue.IssueType, models.IssueTypeMissingLedger)
	}
	if issue.ExternalRef != "PAY-9" {
		t.Fatalf("external ref = %s", issue.ExternalRef)
	}
	if !issue.ExpectedAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected amount = %s", issue.ExpectedAmount)
	}
	if issue.Status != models.IssueStatusOpen {
		t.Fatalf("status = %s, want OPEN", issue.Status)
	}
}

func TestDiff_AmountMismatch(t *testing.T) {
	external := []ExternalRecord{extRecord("PAY-1", "20000", "USD")}
	entries := []models.LedgerEntry{
		debitEntry("PAY-1", "19999.99", "USD"),
		creditEntry("PAY-1", "19999.99", "USD"),
	}
	result := DiffLedgerAgainstExternal(external, entries)
	if result.Matched != 0 {
		t.Fatalf("matched = %d, want 0", result.Matched)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.IssueType != models.IssueTypeAmountMismatch {
		t.Fatalf("issue type = %s", issue.IssueType)
	}
	if !issue.ExpectedAmount.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("expected = %s", issue.ExpectedAmount)
	}
	want, _ := decimal.NewFromString("19999.99")
	if !issue.ActualAmount.Equal(want) {
		t.Fatalf("actual = %s, want %s", issue.ActualAmount, want)
	}
}

func TestDiff_OrphanLedger(t *testing.T) {
	entries := []models.LedgerEntry{
		debitEntry("PAY-GHOST", "77", "USD"),
		creditEntry("PAY-GHOST", "77", "USD"),
	}
	result := DiffLedgerAgainstExternal(nil, entries)
	if len(result.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.IssueType != models.IssueTypeOrphanLedger {
		t.Fatalf("issue type = %s", issue.IssueType)
	}
	if !issue.ActualAmount.Equal(decimal.NewFromInt(77)) {
		t.Fatalf("actual = %s", issue.ActualAmount)
	}
}

func TestDiff_CreditLegTotalsOnly(t *testing.T) {
	// The debit leg mirrors the credit leg; only credit totals are compared
	// so the mirrored leg does not double the ledger side.
	external := []ExternalRecord{extRecord("PAY-1", "100", "USD")}
	entries := []models.LedgerEntry{
		debitEntry("PAY-1", "100", "USD"),
		creditEntry("PAY-1", "100", "USD"),
	}
	result := DiffLedgerAgainstExternal(external, entries)
	if result.Matched != 1 || len(result.Issues) != 0 {
		t.Fatalf("matched=%d issues=%d, want 1/0", result.Matched, len(result.Issues))
	}
}

func TestDiff_SplitCreditsSumPerRef(t *testing.T) {
	external := []ExternalRecord{extRecord("PAY-1", "150", "USD")}
	entries := []models.LedgerEntry{
		creditEntry("PAY-1", "100", "USD"),
		creditEntry("PAY-1", "50", "USD"),
	}
	result := DiffLedgerAgainstExternal(external, entries)
	if result.Matched != 1 || len(result.Issues) != 0 {
		t.Fatalf("matched=%d issues=%d, want 1/0", result.Matched, len(result.Issues))
	}
}

func TestDiff_Deterministic(t *testing.T) {
	external := []ExternalRecord{
		extRecord("PAY-1", "1", "USD"),
		extRecord("PAY-2", "2", "USD"),
		extRecord("PAY-3", "3", "USD"),
	}
	entries := []models.LedgerEntry{
		creditEntry("PAY-2", "999", "USD"),
		creditEntry("PAY-4", "4", "USD"),
		creditEntry("PAY-5", "5", "USD"),
	}
	first := DiffLedgerAgainstExternal(external, entries)
	for i := 0; i < 20; i++ {
		again := DiffLedgerAgainstExternal(external, entries)
		if again.Matched != first.Matched || len(again.Issues) != len(first.Issues) {
			t.Fatalf("iteration %d: result shape changed", i)
		}
		for j := range again.Issues {
			if again.Issues[j].ExternalRef != first.Issues[j].ExternalRef ||
				again.Issues[j].IssueType != first.Issues[j].IssueType {
				t.Fatalf("iteration %d: issue order changed at %d", i, j)
			}
		}
	}
	// Ordering contract: external input order first, then ledger first-seen
	// order for orphans.
	wantRefs := []string{"PAY-1", "PAY-2", "PAY-3", "PAY-4", "PAY-5"}
	if len(first.Issues) != len(wantRefs) {
		t.Fatalf("issues = %d, want %d", len(first.Issues), len(wantRefs))
	}
	for i, ref := range wantRefs {
		if first.Issues[i].ExternalRef != ref {
			t.Fatalf("issue %d ref = %s, want %s", i, first.Issues[i].ExternalRef, ref)
		}
	}
}

// A run is born RUNNING and only finalization decides OK vs MISMATCH, so an
// interrupted run can never read as a clean pass.
func TestRunOutcome(t *testing.T) {
	if got := runOutcome(0); got != models.ReconciliationRunStatusOk {
		t.Fatalf("runOutcome(0) = %s, want OK", got)
	}
	for _, n := range []int{1, 2, 50} {
		if got := runOutcome(n); got != models.ReconciliationRunStatusMismatch {
			t.Fatalf("runOutcome(%d) = %s, want MISMATCH", n, got)
		}
	}
}
