package models

import "bitbucket.org/meridianassets/invest_backend/utils"

// Static transition tables, one per entity kind. A status value maps to the
// set of permitted next states; terminal states map to an empty set. These
// tables are the single source of truth for status legality: every caller
// that flips a status field must pass through AssertTransition inside the
// same unit of work as the write.
var transitionTables = map[EntityKind]map[string][]string{
	EntityKindSubscription: {
		string(SubscriptionStatusDraft):          {string(SubscriptionStatusPendingPayment), string(SubscriptionStatusCancelled)},
		string(SubscriptionStatusPendingPayment): {string(SubscriptionStatusCommitted), string(SubscriptionStatusCancelled)},
		string(SubscriptionStatusCommitted):      {string(SubscriptionStatusPaid), string(SubscriptionStatusCancelled)},
		string(SubscriptionStatusPaid):           {string(SubscriptionStatusSettled), string(SubscriptionStatusRefunded)},
		string(SubscriptionStatusSettled):        {},
		string(SubscriptionStatusRefunded):       {},
		string(SubscriptionStatusCancelled):      {},
	},
	EntityKindDistribution: {
		string(DistributionStatusDraft):      {string(DistributionStatusApproved)},
		string(DistributionStatusApproved):   {string(DistributionStatusProcessing)},
		string(DistributionStatusProcessing): {string(DistributionStatusPaid), string(DistributionStatusFailed)},
		string(DistributionStatusPaid):       {},
		string(DistributionStatusFailed):     {string(DistributionStatusProcessing)},
	},
	EntityKindTranche: {
		string(TrancheStatusOpen):    {string(TrancheStatusFunding), string(TrancheStatusClosed)},
		string(TrancheStatusFunding): {string(TrancheStatusFunded), string(TrancheStatusClosed)},
		string(TrancheStatusFunded):  {string(TrancheStatusClosed)},
		string(TrancheStatusClosed):  {},
	},
	EntityKindApplication: {
		string(ApplicationStatusSubmitted): {string(ApplicationStatusInReview)},
		string(ApplicationStatusInReview):  {string(ApplicationStatusApproved), string(ApplicationStatusRejected)},
		string(ApplicationStatusApproved):  {},
		string(ApplicationStatusRejected):  {},
	},
	EntityKindAnchorRecord: {
		string(AnchorStatusPending):    {string(AnchorStatusProcessing)},
		string(AnchorStatusProcessing): {string(AnchorStatusAnchored), string(AnchorStatusPending), string(AnchorStatusFailed)},
		// FAILED is terminal for the worker; only the operator retry action
		// resets it to PENDING.
		string(AnchorStatusFailed):   {string(AnchorStatusPending)},
		string(AnchorStatusAnchored): {},
	},
	EntityKindBlockchainOp: {
		string(BlockchainOpStatusPending):   {string(BlockchainOpStatusSubmitted)},
		string(BlockchainOpStatusSubmitted): {string(BlockchainOpStatusConfirmed), string(BlockchainOpStatusPending), string(BlockchainOpStatusFailed)},
		string(BlockchainOpStatusConfirmed): {},
		string(BlockchainOpStatusFailed):    {},
	},
	EntityKindReconciliationIssue: {
		string(IssueStatusOpen):     {string(IssueStatusResolved)},
		string(IssueStatusResolved): {},
	},
}

// AssertTransition fails with *utils.IllegalTransitionError when target is not
// in the allowed-successor set of current for that entity kind. It performs no
// I/O and is deterministic: the same check always yields the same verdict.
func AssertTransition(kind EntityKind, current string, target string) error {
	table, ok := transitionTables[kind]
	if !ok {
		return &utils.IllegalTransitionError{EntityKind: string(kind), From: current, To: target}
	}
	successors, ok := table[current]
	if !ok {
		return &utils.IllegalTransitionError{EntityKind: string(kind), From: current, To: target}
	}
	for _, s := range successors {
		if s == target {
			return nil
		}
	}
	return &utils.IllegalTransitionError{EntityKind: string(kind), From: current, To: target}
}
