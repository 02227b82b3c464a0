package models

import (
	"encoding/json"
	"testing"

	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/shopspring/decimal"
)

func TestEncodeOpPayload_MatchingVariants(t *testing.T) {
	cases := []struct {
		opType  BlockchainOpType
		payload interface{}
	}{
		{BlockchainOpTypeMint, MintPayload{TokenAddress: "0xabc", ToAddress: "0xdef", Amount: decimal.NewFromInt(100)}},
		{BlockchainOpTypeBurn, BurnPayload{TokenAddress: "0xabc", FromAddress: "0xdef", Amount: decimal.NewFromInt(10)}},
		{BlockchainOpTypePayout, PayoutPayload{TokenAddress: "0xabc", Amount: decimal.NewFromInt(500), Currency: "USD", PayoutRef: "PO-1"}},
		{BlockchainOpTypeWhitelist, WhitelistPayload{TokenAddress: "0xabc", InvestorAddress: "0xdef", Allowed: true}},
		{BlockchainOpTypeDeployToken, DeployTokenPayload{Name: "Tranche A", Symbol: "TRA", AssetRef: "ASSET-1", TrancheId: 7}},
		{BlockchainOpTypeFreeze, FreezePayload{TokenAddress: "0xabc", Frozen: true}},
	}
	for _, tc := range cases {
		encoded, err := EncodeOpPayload(tc.opType, tc.payload)
		if err != nil {
			t.Fatalf("%s: %v", tc.opType, err)
		}
		if !json.Valid(encoded) {
			t.Fatalf("%s: encoded payload is not valid JSON", tc.opType)
		}
	}
}

func TestEncodeOpPayload_MismatchedVariantRejected(t *testing.T) {
	_, err := EncodeOpPayload(BlockchainOpTypeMint, BurnPayload{TokenAddress: "0xabc", FromAddress: "0xdef", Amount: decimal.NewFromInt(1)})
	if err == nil {
		t.Fatal("mint with burn payload should be rejected")
	}
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestEncodeOpPayload_UnknownOpTypeRejected(t *testing.T) {
	_, err := EncodeOpPayload(BlockchainOpType("TELEPORT"), MintPayload{})
	if err == nil {
		t.Fatal("unknown op type should be rejected")
	}
}

func TestEncodeOpPayload_OpenMapRejected(t *testing.T) {
	_, err := EncodeOpPayload(BlockchainOpTypeMint, map[string]interface{}{"token_address": "0xabc"})
	if err == nil {
		t.Fatal("untyped payload should be rejected")
	}
}
