package utils

import "testing"

func TestVerifyWebhookSignature_RoundTrip(t *testing.T) {
	body := []byte(`{"event_type":"charge.succeeded","reference":"PAY-1","amount":"20000"}`)
	secret := "whsec_test"

	sig := SignWebhookBody(body, secret)
	if !VerifyWebhookSignature(body, sig, secret) {
		t.Fatal("valid signature rejected")
	}
	if !VerifyWebhookSignature(body, "sha256="+sig, secret) {
		t.Fatal("prefixed signature rejected")
	}
	if !VerifyWebhookSignature(body, "  "+sig+"  ", secret) {
		t.Fatal("whitespace-padded signature rejected")
	}
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	body := []byte(`{"amount":"20000"}`)
	secret := "whsec_test"
	sig := SignWebhookBody(body, secret)

	tampered := []byte(`{"amount":"20001"}`)
	if VerifyWebhookSignature(tampered, sig, secret) {
		t.Fatal("tampered body accepted")
	}
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	body := []byte(`{"amount":"20000"}`)
	sig := SignWebhookBody(body, "whsec_a")
	if VerifyWebhookSignature(body, sig, "whsec_b") {
		t.Fatal("signature under a different secret accepted")
	}
}

func TestVerifyWebhookSignature_MissingInputs(t *testing.T) {
	body := []byte(`{}`)
	if VerifyWebhookSignature(body, "", "secret") {
		t.Fatal("empty signature accepted")
	}
	if VerifyWebhookSignature(body, SignWebhookBody(body, "secret"), "") {
		t.Fatal("empty secret accepted")
	}
}
