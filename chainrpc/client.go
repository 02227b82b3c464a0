package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Submitter is what the workers depend on; the HTTP client below is the
// production implementation and tests substitute fakes.
type Submitter interface {
	SubmitAnchor(ctx context.Context, req SubmitAnchorRequest) (SubmitResult, error)
	SubmitOperation(ctx context.Context, req SubmitOpRequest) (SubmitResult, error)
}

// TransientError marks gateway failures the workers should retry (timeouts,
// 5xx, 429). Anything else is treated as a permanent rejection for this
// attempt and still consumes a retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("CHAIN_GATEWAY_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("CHAIN_GATEWAY_BASE_URL is required")
	}
	apiKey := strings.TrimSpace(os.Getenv("CHAIN_GATEWAY_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("chain gateway api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("CHAIN_GATEWAY_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("CHAIN_GATEWAY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 60 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *Client) SubmitAnchor(ctx context.Context, req SubmitAnchorRequest) (SubmitResult, error) {
	return c.post(ctx, "/v1/anchors", req)
}

func (c *Client) SubmitOperation(ctx context.Context, req SubmitOpRequest) (SubmitResult, error) {
	return c.post(ctx, "/v1/operations", req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (SubmitResult, error) {
	<-c.limiter

	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	httpReq.Header.Set(c.apiKeyHdr, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SubmitResult{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return SubmitResult{}, &TransientError{Err: fmt.Errorf("chain gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SubmitResult{}, fmt.Errorf("chain gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result SubmitResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return SubmitResult{}, err
	}
	if result.TxHash == "" {
		return SubmitResult{}, fmt.Errorf("chain gateway returned no tx hash")
	}
	return result, nil
}
