package models

// LedgerType partitions the ledger by the kind of money movement documented.
type LedgerType string

const (
	LedgerTypeEscrow       LedgerType = "Escrow"
	LedgerTypeOwnership    LedgerType = "Ownership"
	LedgerTypeDistribution LedgerType = "Distribution"
	LedgerTypeTranche      LedgerType = "Tranche"
	LedgerTypeRedemption   LedgerType = "Redemption"
	LedgerTypeFee          LedgerType = "Fee"
)

type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "Debit"
	EntryDirectionCredit EntryDirection = "Credit"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

// EntityKind names a status-bearing entity for the transition guard.
type EntityKind string

const (
	EntityKindSubscription        EntityKind = "Subscription"
	EntityKindDistribution        EntityKind = "Distribution"
	EntityKindTranche             EntityKind = "Tranche"
	EntityKindApplication         EntityKind = "Application"
	EntityKindAnchorRecord        EntityKind = "AnchorRecord"
	EntityKindBlockchainOp        EntityKind = "BlockchainOp"
	EntityKindReconciliationIssue EntityKind = "ReconciliationIssue"
)

type SubscriptionStatus string

const (
	SubscriptionStatusDraft          SubscriptionStatus = "Draft"
	SubscriptionStatusPendingPayment SubscriptionStatus = "PendingPayment"
	SubscriptionStatusCommitted      SubscriptionStatus = "Committed"
	SubscriptionStatusPaid           SubscriptionStatus = "Paid"
	SubscriptionStatusSettled        SubscriptionStatus = "Settled"
	SubscriptionStatusRefunded       SubscriptionStatus = "Refunded"
	SubscriptionStatusCancelled      SubscriptionStatus = "Cancelled"
)

type DistributionStatus string

const (
	DistributionStatusDraft      DistributionStatus = "Draft"
	DistributionStatusApproved   DistributionStatus = "Approved"
	DistributionStatusProcessing DistributionStatus = "Processing"
	DistributionStatusPaid       DistributionStatus = "Paid"
	DistributionStatusFailed     DistributionStatus = "Failed"
)

type TrancheStatus string

const (
	TrancheStatusOpen    TrancheStatus = "Open"
	TrancheStatusFunding TrancheStatus = "Funding"
	TrancheStatusFunded  TrancheStatus = "Funded"
	TrancheStatusClosed  TrancheStatus = "Closed"
)

type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "Submitted"
	ApplicationStatusInReview  ApplicationStatus = "InReview"
	ApplicationStatusApproved  ApplicationStatus = "Approved"
	ApplicationStatusRejected  ApplicationStatus = "Rejected"
)

type AnchorStatus string

const (
	AnchorStatusPending    AnchorStatus = "PENDING"
	AnchorStatusProcessing AnchorStatus = "PROCESSING"
	AnchorStatusAnchored   AnchorStatus = "ANCHORED"
	AnchorStatusFailed     AnchorStatus = "FAILED"
)

type BlockchainOpStatus string

const (
	BlockchainOpStatusPending   BlockchainOpStatus = "PENDING"
	BlockchainOpStatusSubmitted BlockchainOpStatus = "SUBMITTED"
	BlockchainOpStatusConfirmed BlockchainOpStatus = "CONFIRMED"
	BlockchainOpStatusFailed    BlockchainOpStatus = "FAILED"
)

type BlockchainOpType string

const (
	BlockchainOpTypeDeployToken BlockchainOpType = "DEPLOY_TOKEN"
	BlockchainOpTypeMint        BlockchainOpType = "MINT"
	BlockchainOpTypeBurn        BlockchainOpType = "BURN"
	BlockchainOpTypeFreeze      BlockchainOpType = "FREEZE"
	BlockchainOpTypePayout      BlockchainOpType = "PAYOUT"
	BlockchainOpTypeWhitelist   BlockchainOpType = "WHITELIST"
)

type ReconciliationSource string

const (
	ReconciliationSourceBank     ReconciliationSource = "Bank"
	ReconciliationSourceOnchain  ReconciliationSource = "Onchain"
	ReconciliationSourceProvider ReconciliationSource = "Provider"
	ReconciliationSourceManual   ReconciliationSource = "Manual"
)

type ReconciliationRunStatus string

const (
	// RUNNING is the state a run is born in; OK and MISMATCH are set only at
	// completion, so a crash mid-run never leaves a false OK behind.
	ReconciliationRunStatusRunning  ReconciliationRunStatus = "RUNNING"
	ReconciliationRunStatusOk       ReconciliationRunStatus = "OK"
	ReconciliationRunStatusMismatch ReconciliationRunStatus = "MISMATCH"
	ReconciliationRunStatusFailed   ReconciliationRunStatus = "FAILED"
)

type ReconciliationIssueType string

const (
	IssueTypeMissingLedger  ReconciliationIssueType = "MISSING_LEDGER"
	IssueTypeAmountMismatch ReconciliationIssueType = "AMOUNT_MISMATCH"
	IssueTypeOrphanLedger   ReconciliationIssueType = "ORPHAN_LEDGER"
)

type ReconciliationIssueStatus string

const (
	IssueStatusOpen     ReconciliationIssueStatus = "OPEN"
	IssueStatusResolved ReconciliationIssueStatus = "RESOLVED"
)

// AnchorEventType enumerates state transitions worth attesting on chain.
type AnchorEventType string

const (
	AnchorEventSubscriptionPaid     AnchorEventType = "SUBSCRIPTION_PAID"
	AnchorEventDistributionPaid     AnchorEventType = "DISTRIBUTION_PAID"
	AnchorEventTrancheFunded        AnchorEventType = "TRANCHE_FUNDED"
	AnchorEventApplicationApproved  AnchorEventType = "APPLICATION_APPROVED"
	AnchorEventSubscriptionRefunded AnchorEventType = "SUBSCRIPTION_REFUNDED"
)
