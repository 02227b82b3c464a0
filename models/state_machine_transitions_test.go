package models

import (
	"testing"

	"bitbucket.org/meridianassets/invest_backend/utils"
)

func TestAssertTransition_AllowedPaths(t *testing.T) {
	cases := []struct {
		kind EntityKind
		from string
		to   string
	}{
		{EntityKindSubscription, "Draft", "PendingPayment"},
		{EntityKindSubscription, "PendingPayment", "Committed"},
		{EntityKindSubscription, "Committed", "Paid"},
		{EntityKindSubscription, "Paid", "Settled"},
		{EntityKindSubscription, "Paid", "Refunded"},
		{EntityKindSubscription, "Committed", "Cancelled"},
		{EntityKindDistribution, "Approved", "Processing"},
		{EntityKindDistribution, "Processing", "Paid"},
		{EntityKindDistribution, "Failed", "Processing"},
		{EntityKindTranche, "Funding", "Funded"},
		{EntityKindApplication, "InReview", "Approved"},
		{EntityKindApplication, "InReview", "Rejected"},
		{EntityKindAnchorRecord, "PENDING", "PROCESSING"},
		{EntityKindAnchorRecord, "PROCESSING", "ANCHORED"},
		{EntityKindAnchorRecord, "FAILED", "PENDING"},
		{EntityKindBlockchainOp, "PENDING", "SUBMITTED"},
		{EntityKindBlockchainOp, "SUBMITTED", "CONFIRMED"},
		{EntityKindBlockchainOp, "SUBMITTED", "PENDING"},
		{EntityKindReconciliationIssue, "OPEN", "RESOLVED"},
	}
	for _, tc := range cases {
		if err := AssertTransition(tc.kind, tc.from, tc.to); err != nil {
			t.Fatalf("%s %s -> %s should be allowed, got %v", tc.kind, tc.from, tc.to, err)
		}
	}
}

func TestAssertTransition_IllegalPaths(t *testing.T) {
	cases := []struct {
		kind EntityKind
		from string
		to   string
	}{
		// Skipping intermediate states.
		{EntityKindSubscription, "Draft", "Paid"},
		{EntityKindSubscription, "PendingPayment", "Paid"},
		// Terminal states stay terminal.
		{EntityKindSubscription, "Settled", "Paid"},
		{EntityKindSubscription, "Refunded", "Paid"},
		{EntityKindSubscription, "Cancelled", "Draft"},
		{EntityKindDistribution, "Paid", "Processing"},
		{EntityKindApplication, "Approved", "Rejected"},
		{EntityKindAnchorRecord, "ANCHORED", "PENDING"},
		// A FAILED op is terminal; only FAILED anchors get operator retries.
		{EntityKindBlockchainOp, "FAILED", "PENDING"},
		{EntityKindReconciliationIssue, "RESOLVED", "OPEN"},
		// Backwards moves.
		{EntityKindSubscription, "Paid", "Committed"},
		{EntityKindTranche, "Funded", "Funding"},
	}
	for _, tc := range cases {
		err := AssertTransition(tc.kind, tc.from, tc.to)
		if err == nil {
			t.Fatalf("%s %s -> %s should be rejected", tc.kind, tc.from, tc.to)
		}
		if !utils.IsIllegalTransition(err) {
			t.Fatalf("%s %s -> %s: expected IllegalTransitionError, got %T", tc.kind, tc.from, tc.to, err)
		}
	}
}

func TestAssertTransition_SelfTransitionRejected(t *testing.T) {
	if err := AssertTransition(EntityKindSubscription, "Paid", "Paid"); err == nil {
		t.Fatal("self transition should be rejected")
	}
}

func TestAssertTransition_UnknownStatusRejected(t *testing.T) {
	if err := AssertTransition(EntityKindSubscription, "Bogus", "Paid"); err == nil {
		t.Fatal("unknown current status should be rejected")
	}
	if err := AssertTransition(EntityKindSubscription, "Draft", "Bogus"); err == nil {
		t.Fatal("unknown target status should be rejected")
	}
	if err := AssertTransition(EntityKind("Nope"), "Draft", "Paid"); err == nil {
		t.Fatal("unknown entity kind should be rejected")
	}
}

func TestAssertTransition_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if err := AssertTransition(EntityKindSubscription, "Committed", "Paid"); err != nil {
			t.Fatalf("iteration %d: verdict changed: %v", i, err)
		}
		if err := AssertTransition(EntityKindSubscription, "Committed", "Settled"); err == nil {
			t.Fatalf("iteration %d: verdict changed: illegal move accepted", i)
		}
	}
}
