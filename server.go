package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/meridianassets/invest_backend/chainrpc"
	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"bitbucket.org/meridianassets/invest_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("invest-backend")

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful
	// drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until DB/Redis
	// are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "X-Signature", "X-Ops-Key", "X-Ops-Operator")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// Background processors, wired before routing so handlers can poke them.
	chainClient, chainErr := chainrpc.NewClient()
	var chain chainrpc.Submitter
	if chainErr != nil {
		logger.WithFields(logrus.Fields{
			"module": "server.go",
		}).Warn("chain gateway not configured; anchors and operations stay pending: " + chainErr.Error())
	} else {
		chain = chainClient
	}
	anchorWorker := NewAnchorWorker(nil, logger, chain)
	opWorker := NewChainOpWorker(nil, logger, chain)

	fetchers, fetchErr := configuredFetchers()
	if fetchErr != nil {
		logger.WithFields(logrus.Fields{
			"module": "server.go",
		}).Warn("statements api not configured; scheduled reconciliation disabled: " + fetchErr.Error())
		fetchers = map[models.ReconciliationSource]workflow.SettledFetcher{}
	}
	scheduler := NewReconciliationScheduler(nil, logger, fetchers)

	r.POST("/webhooks/payment", paymentWebhookHandler())
	r.POST("/webhooks/identity", identityWebhookHandler())

	ops := r.Group("/ops", opsAuthMiddleware())
	ops.POST("/anchors/:id/retry", retryAnchorHandler(anchorWorker))
	ops.POST("/reconciliation/issues/:id/resolve", resolveIssueHandler())
	ops.POST("/reconciliation/runs", triggerReconciliationHandler(fetchers))
	ops.GET("/reconciliation/runs/:id/export", exportReconciliationRunHandler())
	ops.GET("/reconciliation/issues/:id/entries", issueEntriesHandler())
	ops.POST("/distributions/:id/payout", startDistributionPayoutHandler(opWorker))
	ops.POST("/tranches/:id/status", updateTrancheStatusHandler())
	ops.GET("/accounts", listLedgerAccountsHandler())
	ops.GET("/accounts/:code/balance", accountBalanceHandler())
	ops.POST("/workers/trigger", triggerWorkersHandler(anchorWorker, opWorker))

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	// Workers get the live DB handle only now that it exists.
	anchorWorker.DB = db
	opWorker.DB = db
	scheduler.DB = db

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if chain != nil {
		go anchorWorker.Run(workerCtx)
		go opWorker.Run(workerCtx)
	}
	if len(fetchers) > 0 {
		if err := scheduler.Start(); err != nil {
			config.LogError(logger, "server.go", "main", "start reconciliation scheduler", nil, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while
	// draining.
	anchorWorker.Stop()
	opWorker.Stop()
	scheduler.Stop()
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
