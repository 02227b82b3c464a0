package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// OpsAlert is published when a worker exhausts its retries or a
// reconciliation run detects drift. Consumers page a human; nothing here is
// auto-corrected.
type OpsAlert struct {
	Kind          string    `json:"kind"` // chain_op_failed|anchor_failed|reconciliation_mismatch
	EntityType    string    `json:"entity_type"`
	EntityId      int       `json:"entity_id"`
	Detail        string    `json:"detail"`
	CorrelationId string    `json:"correlation_id"`
	RaisedAt      time.Time `json:"raised_at"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials.
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}

	pubsubClientMu.Lock()
	if pubsubClient == nil {
		pubsubClient = c
	} else {
		// Another goroutine won the race; close ours.
		_ = c.Close()
	}
	c2 := pubsubClient
	pubsubClientMu.Unlock()
	return c2, nil
}

// PublishOpsAlert is best-effort: alerting must never fail the worker path,
// so failures are logged and swallowed by the caller.
func PublishOpsAlert(ctx context.Context, alert OpsAlert) error {
	topicName := os.Getenv("OPS_ALERT_TOPIC")
	if topicName == "" {
		// Alerting not configured (local/dev); log so the signal is not lost.
		log.Printf("ops alert (no topic configured): %s %s/%d %s", alert.Kind, alert.EntityType, alert.EntityId, alert.Detail)
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := getPubSubClient(pubCtx)
	if err != nil {
		return err
	}

	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = time.Now().UTC()
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	result := client.Topic(topicName).Publish(pubCtx, &pubsub.Message{Data: data})
	_, err = result.Get(pubCtx)
	return err
}
