package chainrpc

import "encoding/json"

// SubmitAnchorRequest attests an off-chain event on the anchoring contract.
type SubmitAnchorRequest struct {
	EntityType    string          `json:"entity_type"`
	EntityId      int             `json:"entity_id"`
	EventType     string          `json:"event_type"`
	CanonicalHash string          `json:"canonical_hash"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// SubmitOpRequest asks the gateway to sign and submit one chain-mutating
// operation. The gateway owns keys and the contract ABI; this service only
// needs the submit/confirm/fail contract.
//
// OpId is the dedupe key: a SUBMITTED op whose worker crashed before
// recording the outcome is reclaimed and resubmitted, and the gateway must
// answer a repeated op_id with the earlier submission's result instead of
// executing twice.
type SubmitOpRequest struct {
	OpId    int             `json:"op_id"`
	OpType  string          `json:"op_type"`
	ChainId string          `json:"chain_id"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitResult is the gateway's acknowledgment of a confirmed submission.
type SubmitResult struct {
	TxHash   string `json:"tx_hash"`
	ChainRef string `json:"chain_ref"`
}
