// Package search calls the product search service that resolves search
// queries into purchase-candidate URLs.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/pipeline"
)

// Client implements pipeline.Searcher against an HTTP search service.
type Client struct {
	baseURL       string
	apiKey        string
	costPerSearch float64
	client        *http.Client
	logger        *zap.Logger
}

// NewClient builds a search client. costPerSearch prices each billable
// web search for the usage estimate.
func NewClient(baseURL, apiKey string, timeout time.Duration, costPerSearch float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		costPerSearch: costPerSearch,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

type searchRequest struct {
	Queries []string `json:"queries"`
}

type searchResponse struct {
	URLs  []string `json:"urls"`
	Error string   `json:"error,omitempty"`
	Usage struct {
		Requests int `json:"requests"`
		Searches int `json:"searches"`
	} `json:"usage"`
}

// Search resolves the queries into candidate URLs plus usage counters.
// Rate-limited upstream responses come back wrapped with
// pipeline.RateLimited so the retry policy can apply the long delay.
func (c *Client) Search(ctx context.Context, queries []string) ([]string, pipeline.SearchUsage, error) {
	var usage pipeline.SearchUsage

	body, err := json.Marshal(searchRequest{Queries: queries})
	if err != nil {
		return nil, usage, pipeline.Permanent(fmt.Errorf("encode search request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, usage, pipeline.Permanent(fmt.Errorf("build search request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, usage, pipeline.Transient(fmt.Errorf("call search service: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, usage, pipeline.Transient(fmt.Errorf("read search response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, usage, pipeline.RateLimited(fmt.Errorf("search service rate limited"))
	case resp.StatusCode >= 500:
		return nil, usage, pipeline.Transient(fmt.Errorf("search service status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, usage, pipeline.Permanent(fmt.Errorf("search service status %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, usage, pipeline.Transient(fmt.Errorf("decode search response: %w", err))
	}

	usage = pipeline.SearchUsage{
		Requests:         parsed.Usage.Requests,
		Searches:         parsed.Usage.Searches,
		EstimatedCostUSD: float64(parsed.Usage.Searches) * c.costPerSearch,
	}

	// Some deployments report throttling in-band with a 200.
	if parsed.Error != "" {
		if strings.Contains(strings.ToLower(parsed.Error), "rate") {
			return nil, usage, pipeline.RateLimited(fmt.Errorf("search service: %s", parsed.Error))
		}
		return nil, usage, pipeline.Transient(fmt.Errorf("search service: %s", parsed.Error))
	}

	c.logger.Debug("search completed",
		zap.Int("queries", len(queries)),
		zap.Int("urls", len(parsed.URLs)),
		zap.Int("billable_searches", parsed.Usage.Searches),
	)

	return parsed.URLs, usage, nil
}
