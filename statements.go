package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"bitbucket.org/meridianassets/invest_backend/workflow"
)

// statementClient fetches settled records from the statements aggregator
// (bank statement lines, provider settlement rows, indexed on-chain
// transfers) for the reconciliation engine.
type statementClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newStatementClient() (*statementClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("STATEMENTS_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("STATEMENTS_API_BASE_URL is required")
	}
	apiKey := strings.TrimSpace(os.Getenv("STATEMENTS_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("statements api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("STATEMENTS_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("STATEMENTS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &statementClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type statementRow struct {
	ExternalRef string `json:"external_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	SettledAt   string `json:"settled_at"`
}

type statementListResponse struct {
	Data       []statementRow `json:"data"`
	NextCursor string         `json:"next_cursor"`
	HasMore    *bool          `json:"has_more"`
}

// FetchSettled pages through /settled for the given source until the cursor
// is exhausted. Rows with an unparseable amount fail the whole fetch: a
// partial external view must not be reconciled against.
func (c *statementClient) FetchSettled(ctx context.Context, source models.ReconciliationSource) ([]workflow.ExternalRecord, error) {
	var out []workflow.ExternalRecord
	cursor := ""
	for {
		params := url.Values{}
		params.Set("source", strings.ToLower(string(source)))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		page, err := c.getList(ctx, "/v1/settled", params)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Data {
			amount, err := utils.ParseAmount(row.Amount)
			if err != nil {
				return nil, fmt.Errorf("statement row %s: %w", row.ExternalRef, err)
			}
			settledAt, err := time.Parse(time.RFC3339, row.SettledAt)
			if err != nil {
				return nil, fmt.Errorf("statement row %s: %w", row.ExternalRef, err)
			}
			out = append(out, workflow.ExternalRecord{
				ExternalRef: row.ExternalRef,
				Amount:      amount,
				Currency:    row.Currency,
				SettledAt:   settledAt,
			})
		}
		if page.NextCursor == "" || (page.HasMore != nil && !*page.HasMore) {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *statementClient) getList(ctx context.Context, path string, params url.Values) (statementListResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return statementListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return statementListResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return statementListResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statementListResponse{}, fmt.Errorf("statements api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed statementListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return statementListResponse{}, err
	}
	return parsed, nil
}

// configuredFetchers maps the sources named in RECONCILIATION_SOURCES
// (comma-separated, default "Bank,Provider") onto the statement client.
func configuredFetchers() (map[models.ReconciliationSource]workflow.SettledFetcher, error) {
	raw := strings.TrimSpace(os.Getenv("RECONCILIATION_SOURCES"))
	if raw == "" {
		raw = "Bank,Provider"
	}
	client, err := newStatementClient()
	if err != nil {
		return nil, err
	}
	fetchers := make(map[models.ReconciliationSource]workflow.SettledFetcher)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fetchers[models.ReconciliationSource(part)] = client
	}
	return fetchers, nil
}
