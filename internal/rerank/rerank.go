// Package rerank scores (query, document) pairs with an external
// cross-encoder relevance model. The pipeline treats rerank as a best-effort
// refinement: callers fall back to retrieval order when the service fails.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taxline/taxline/internal/log"
)

// Result is a single reranked entry. Index refers to the caller's document
// slice; RelevanceScore is the cross-encoder score in [0, 1].
type Result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Reranker reorders documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
}

// Client calls a Cohere-compatible rerank endpoint.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a rerank client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rerank base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("rerank API key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []Result `json:"results"`
}

// Rerank scores documents against the query and returns the top N by
// relevance, ordered best first.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN > len(documents) {
		topN = len(documents)
	}

	req := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}

	var resp rerankResponse
	if err := c.makeRequest(ctx, c.baseURL+"/v2/rerank", req, &resp); err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}

	// Defend against an index the caller cannot address.
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank response index %d out of range (%d documents)", r.Index, len(documents))
		}
	}

	c.logger.Debug("rerank complete", "documents", len(documents), "returned", len(resp.Results))
	return resp.Results, nil
}

func (c *Client) makeRequest(ctx context.Context, url string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rerank API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}
