// Package analytics talks to the third-party node analytics API, which
// tracks observed uptime and routing statistics for public nodes.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single analytics request.
const DefaultTimeout = 15 * time.Second

// NodeStats is the provider's view of a node.
type NodeStats struct {
	UptimePercentage float64 // [0,100]
	RankByCapacity   int
	RankByChannels   int
}

// Client fetches per-node statistics.
type Client interface {
	NodeStats(ctx context.Context, pubkey string) (*NodeStats, error)
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates an analytics client. apiKey may be empty for the
// unauthenticated tier.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

type nodeStatsResponse struct {
	UptimePercentage float64 `json:"uptime_percentage"`
	RankByCapacity   int     `json:"rank_by_capacity"`
	RankByChannels   int     `json:"rank_by_channels"`
}

// NodeStats fetches statistics for one node.
func (c *HTTPClient) NodeStats(ctx context.Context, pubkey string) (*NodeStats, error) {
	endpoint := fmt.Sprintf("%s/api/v1/nodes/%s/stats", c.baseURL, url.PathEscape(pubkey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node stats request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node stats status %d: %s", resp.StatusCode, string(body))
	}

	var wire nodeStatsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal node stats: %w", err)
	}

	return &NodeStats{
		UptimePercentage: wire.UptimePercentage,
		RankByCapacity:   wire.RankByCapacity,
		RankByChannels:   wire.RankByChannels,
	}, nil
}
