package utils

import (
	"encoding/json"
	"testing"
)

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	a := json.RawMessage(`{"b":2,"a":1,"c":{"z":true,"y":"x"}}`)
	b := json.RawMessage(`{"c":{"y":"x","z":true},"a":1,"b":2}`)

	ca, err := CanonicalJSON(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	cb, err := CanonicalJSON(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("same object, different canonical forms:\n%s\n%s", ca, cb)
	}
}

func TestCanonicalJSON_StructAndMapAgree(t *testing.T) {
	type sample struct {
		Beta  int    `json:"beta"`
		Alpha string `json:"alpha"`
	}
	fromStruct, err := CanonicalJSON(sample{Beta: 7, Alpha: "x"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	fromMap, err := CanonicalJSON(map[string]interface{}{"alpha": "x", "beta": 7})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if string(fromStruct) != string(fromMap) {
		t.Fatalf("struct and map diverge:\n%s\n%s", fromStruct, fromMap)
	}
}

func TestCanonicalHash_StableAcrossCalls(t *testing.T) {
	payload := map[string]interface{}{
		"entity_type": "Subscription",
		"entity_id":   42,
		"amount":      "20000.0000",
	}
	first, err := CanonicalHash(payload)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%s)", len(first), first)
	}
	for i := 0; i < 50; i++ {
		h, err := CanonicalHash(payload)
		if err != nil {
			t.Fatalf("hash iteration %d: %v", i, err)
		}
		if h != first {
			t.Fatalf("hash changed across calls: %s vs %s", first, h)
		}
	}
}

func TestCanonicalHash_ChangedPayloadChangesHash(t *testing.T) {
	base := map[string]interface{}{"ref": "PAY-1", "amount": "100"}
	changed := map[string]interface{}{"ref": "PAY-1", "amount": "100.01"}

	h1, err := CanonicalHash(base)
	if err != nil {
		t.Fatalf("hash base: %v", err)
	}
	h2, err := CanonicalHash(changed)
	if err != nil {
		t.Fatalf("hash changed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("different payloads must hash differently")
	}
}

func TestCanonicalJSON_NumbersKeepPrecision(t *testing.T) {
	raw := json.RawMessage(`{"amount":20000.0001}`)
	c, err := CanonicalJSON(raw)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(c) != `{"amount":20000.0001}` {
		t.Fatalf("number mangled: %s", c)
	}
}

func TestCanonicalJSON_ArraysKeepOrder(t *testing.T) {
	c, err := CanonicalJSON(json.RawMessage(`{"legs":[2,1,3]}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(c) != `{"legs":[2,1,3]}` {
		t.Fatalf("array order changed: %s", c)
	}
}
