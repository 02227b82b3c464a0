package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/gin-gonic/gin"
)

// Signature-gate behavior is testable without a database: rejected deliveries
// never reach the workflow layer, and acknowledged-but-unrecognized events
// return 200 without touching storage.

func newWebhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/payment", paymentWebhookHandler())
	r.POST("/webhooks/identity", identityWebhookHandler())
	return r
}

func TestPaymentWebhook_MissingSignatureRejected(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
	r := newWebhookRouter()

	body := `{"event_type":"charge.succeeded","reference":"PAY-1","amount":"100"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhook_BadSignatureRejected(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
	r := newWebhookRouter()

	body := `{"event_type":"charge.succeeded","reference":"PAY-1","amount":"100"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(signatureHeader, utils.SignWebhookBody([]byte(body), "wrong_secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhook_SignatureOverExactRawBody(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
	r := newWebhookRouter()

	// Signature computed over a semantically equal but byte-different body
	// must be rejected: verification runs on the exact raw bytes.
	sent := `{"event_type":"noop.ping","reference":"PAY-1"}`
	signed := `{"reference":"PAY-1","event_type":"noop.ping"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(sent))
	req.Header.Set(signatureHeader, utils.SignWebhookBody([]byte(signed), "whsec_test"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPaymentWebhook_UnrecognizedEventAcknowledged(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
	r := newWebhookRouter()

	body := `{"event_type":"noop.ping","reference":"PAY-1"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(signatureHeader, utils.SignWebhookBody([]byte(body), "whsec_test"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPaymentWebhook_UnconfiguredSecretUnavailable(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")
	r := newWebhookRouter()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestIdentityWebhook_SignatureGate(t *testing.T) {
	t.Setenv("IDENTITY_WEBHOOK_SECRET", "whsec_id")
	r := newWebhookRouter()

	body := `{"event_type":"noop.ping","reference":"APP-1"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(body))
	req.Header.Set(signatureHeader, "sha256=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(body))
	req.Header.Set(signatureHeader, utils.SignWebhookBody([]byte(body), "whsec_id"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid signature: status = %d, want 200", w.Code)
	}
}
