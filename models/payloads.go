package models

import (
	"encoding/json"

	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
)

// Anchor/op payloads are a closed set of tagged variants, validated at the
// producer boundary. No open maps: an unknown opType is rejected before a row
// is created.

type MintPayload struct {
	TokenAddress string          `json:"token_address" validate:"required"`
	ToAddress    string          `json:"to_address" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
}

type BurnPayload struct {
	TokenAddress string          `json:"token_address" validate:"required"`
	FromAddress  string          `json:"from_address" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
}

type PayoutPayload struct {
	TokenAddress string          `json:"token_address" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Currency     string          `json:"currency" validate:"required"`
	PayoutRef    string          `json:"payout_ref" validate:"required"`
}

type WhitelistPayload struct {
	TokenAddress    string `json:"token_address" validate:"required"`
	InvestorAddress string `json:"investor_address" validate:"required"`
	Allowed         bool   `json:"allowed"`
}

type DeployTokenPayload struct {
	Name      string `json:"name" validate:"required"`
	Symbol    string `json:"symbol" validate:"required"`
	AssetRef  string `json:"asset_ref" validate:"required"`
	TrancheId int    `json:"tranche_id" validate:"required"`
}

type FreezePayload struct {
	TokenAddress string `json:"token_address" validate:"required"`
	Frozen       bool   `json:"frozen"`
}

// EncodeOpPayload marshals the variant matching opType. A mismatched or
// unknown pairing is a validation error, never a stored row.
func EncodeOpPayload(opType BlockchainOpType, payload interface{}) ([]byte, error) {
	ok := false
	switch opType {
	case BlockchainOpTypeMint:
		_, ok = payload.(MintPayload)
	case BlockchainOpTypeBurn:
		_, ok = payload.(BurnPayload)
	case BlockchainOpTypePayout:
		_, ok = payload.(PayoutPayload)
	case BlockchainOpTypeWhitelist:
		_, ok = payload.(WhitelistPayload)
	case BlockchainOpTypeDeployToken:
		_, ok = payload.(DeployTokenPayload)
	case BlockchainOpTypeFreeze:
		_, ok = payload.(FreezePayload)
	}
	if !ok {
		return nil, utils.NewValidationError("payload", "payload does not match op type "+string(opType))
	}
	return json.Marshal(payload)
}

// AnchorEventPayload is what gets canonicalized and hashed for anchoring.
type AnchorEventPayload struct {
	EntityType string          `json:"entity_type"`
	EntityId   int             `json:"entity_id"`
	EventType  AnchorEventType `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
}
