package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/meridianassets/invest_backend/utils"
	"github.com/gin-gonic/gin"
)

func newOpsRouter(t *testing.T, key string) *gin.Engine {
	t.Helper()
	hash, err := utils.HashOperatorKey(key)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	t.Setenv("OPS_API_KEY_HASH", string(hash))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ops := r.Group("/ops", opsAuthMiddleware())
	ops.GET("/ping", func(c *gin.Context) {
		operator, _ := utils.GetOperatorNameFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"operator": operator})
	})
	return r
}

func TestOpsAuth_ValidKeyPasses(t *testing.T) {
	r := newOpsRouter(t, "super-secret-ops-key")

	req := httptest.NewRequest(http.MethodGet, "/ops/ping", nil)
	req.Header.Set("X-Ops-Key", "super-secret-ops-key")
	req.Header.Set("X-Ops-Operator", "alex")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestOpsAuth_WrongKeyRejected(t *testing.T) {
	r := newOpsRouter(t, "super-secret-ops-key")

	req := httptest.NewRequest(http.MethodGet, "/ops/ping", nil)
	req.Header.Set("X-Ops-Key", "guess")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestOpsAuth_MissingKeyRejected(t *testing.T) {
	r := newOpsRouter(t, "super-secret-ops-key")

	req := httptest.NewRequest(http.MethodGet, "/ops/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestOpsAuth_UnconfiguredHashUnavailable(t *testing.T) {
	t.Setenv("OPS_API_KEY_HASH", "")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ops/ping", opsAuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ops/ping", nil)
	req.Header.Set("X-Ops-Key", "anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
