// Package graph talks to the graph-data API, which computes
// network-topology metrics the node itself cannot see.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single graph API request.
const DefaultTimeout = 15 * time.Second

// Client fetches topology-derived metrics for a node.
type Client interface {
	// FlexibilityScore returns the centrality-weighted liquidity
	// flexibility score for the node.
	FlexibilityScore(ctx context.Context, pubkey string) (float64, error)
}

// HTTPClient implements Client over the graph provider's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a graph client.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

type flexibilityResponse struct {
	Score              float64 `json:"score"`
	BetweennessRank    int     `json:"betweenness_rank"`
	ConnectedComponent int     `json:"connected_component"`
}

// FlexibilityScore fetches the node's liquidity flexibility score.
func (c *HTTPClient) FlexibilityScore(ctx context.Context, pubkey string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/nodes/%s/flexibility", c.baseURL, url.PathEscape(pubkey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("flexibility request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("flexibility status %d: %s", resp.StatusCode, string(body))
	}

	var wire flexibilityResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return 0, fmt.Errorf("unmarshal flexibility: %w", err)
	}
	return wire.Score, nil
}
