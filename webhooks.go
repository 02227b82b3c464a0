package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"bitbucket.org/meridianassets/invest_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const signatureHeader = "X-Signature"

// paymentWebhookPayload is the provider's event envelope. The signature is
// computed over the exact raw body, so verification happens before parsing.
type paymentWebhookPayload struct {
	Provider       string `json:"provider"`
	EventType      string `json:"event_type"`
	Reference      string `json:"reference"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	DistributionId int    `json:"distribution_id"`
}

type identityWebhookPayload struct {
	Provider      string `json:"provider"`
	EventType     string `json:"event_type"`
	Reference     string `json:"reference"`
	ApplicationId int    `json:"application_id"`
	WalletAddress string `json:"wallet_address"`
	TokenAddress  string `json:"token_address"`
	ChainId       string `json:"chain_id"`
}

func paymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		secret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
		if secret == "" {
			logger.WithFields(logrus.Fields{"module": "webhooks.go"}).Error("PAYMENT_WEBHOOK_SECRET not configured")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
			return
		}

		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		if !utils.VerifyWebhookSignature(rawBody, c.GetHeader(signatureHeader), secret) {
			logger.WithFields(logrus.Fields{
				"module": "webhooks.go",
				"path":   c.Request.URL.Path,
			}).Warn("payment webhook signature rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		// Signature verified: from here we always ack with 200 so the
		// provider stops redelivering. Failures are logged and recoverable
		// through receipts and reconciliation, not through provider retries.
		var payload paymentWebhookPayload
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			config.LogError(logger, "webhooks.go", "paymentWebhookHandler", "unmarshal payload", string(rawBody), err)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		provider := payload.Provider
		if provider == "" {
			provider = "paygate"
		}

		ctx, span := tracer.Start(c.Request.Context(), "webhook.payment."+payload.EventType)
		defer span.End()
		ctx = utils.SetProviderInContext(ctx, provider)
		event := workflow.ChargeEvent{
			Provider:  provider,
			Reference: payload.Reference,
			EventType: payload.EventType,
			Amount:    payload.Amount,
			Currency:  payload.Currency,
			RawBody:   rawBody,
		}

		db := config.GetDB()
		switch strings.ToLower(payload.EventType) {
		case "charge.succeeded":
			err = workflow.ProcessChargeSucceeded(ctx, db, event)
		case "charge.refunded":
			err = workflow.ProcessChargeRefunded(ctx, db, event)
		case "payout.succeeded":
			err = workflow.ProcessPayoutSucceeded(ctx, db, event, payload.DistributionId)
		default:
			logger.WithFields(logrus.Fields{
				"module":     "webhooks.go",
				"provider":   provider,
				"event_type": payload.EventType,
				"reference":  payload.Reference,
			}).Warn("unrecognized payment event type; acknowledged without processing")
		}
		if err != nil {
			config.LogError(logger, "webhooks.go", "paymentWebhookHandler", payload.EventType, payload.Reference, err)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func identityWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		secret := os.Getenv("IDENTITY_WEBHOOK_SECRET")
		if secret == "" {
			logger.WithFields(logrus.Fields{"module": "webhooks.go"}).Error("IDENTITY_WEBHOOK_SECRET not configured")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
			return
		}

		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		if !utils.VerifyWebhookSignature(rawBody, c.GetHeader(signatureHeader), secret) {
			logger.WithFields(logrus.Fields{
				"module": "webhooks.go",
				"path":   c.Request.URL.Path,
			}).Warn("identity webhook signature rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var payload identityWebhookPayload
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			config.LogError(logger, "webhooks.go", "identityWebhookHandler", "unmarshal payload", string(rawBody), err)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		provider := payload.Provider
		if provider == "" {
			provider = "idcheck"
		}

		ctx, span := tracer.Start(c.Request.Context(), "webhook.identity."+payload.EventType)
		defer span.End()
		ctx = utils.SetProviderInContext(ctx, provider)
		event := workflow.ApplicationEvent{
			Provider:      provider,
			Reference:     payload.Reference,
			EventType:     payload.EventType,
			ApplicationId: payload.ApplicationId,
			WalletAddress: payload.WalletAddress,
			TokenAddress:  payload.TokenAddress,
			ChainId:       payload.ChainId,
			RawBody:       rawBody,
		}

		db := config.GetDB()
		switch strings.ToLower(payload.EventType) {
		case "application.approved":
			err = workflow.ProcessApplicationApproved(ctx, db, event)
		case "application.rejected":
			err = workflow.ProcessApplicationRejected(ctx, db, event)
		default:
			logger.WithFields(logrus.Fields{
				"module":     "webhooks.go",
				"provider":   provider,
				"event_type": payload.EventType,
				"reference":  payload.Reference,
			}).Warn("unrecognized identity event type; acknowledged without processing")
		}
		if err != nil {
			config.LogError(logger, "webhooks.go", "identityWebhookHandler", payload.EventType, payload.Reference, err)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
