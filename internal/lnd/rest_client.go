package lnd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	forwardingPageSize = 1000
)

// RESTClient implements Client against the LND REST gateway.
type RESTClient struct {
	baseURL     string
	macaroon    string // hex-encoded admin or readonly macaroon
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures RESTClient.
type ClientOption func(*RESTClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RESTClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *RESTClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RESTClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client, e.g. one carrying the node's
// TLS certificate.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RESTClient) {
		c.client = client
	}
}

// NewRESTClient creates a client for the LND REST gateway at baseURL.
// macaroon is the hex-encoded readonly macaroon; pass "" for nodes with
// authentication disabled.
func NewRESTClient(baseURL, macaroon string, opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:     baseURL,
		macaroon:    macaroon,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*RESTClient)(nil)

// Wire types. The REST gateway encodes 64-bit integers as JSON strings.

type getInfoResponse struct {
	IdentityPubkey     string `json:"identity_pubkey"`
	Alias              string `json:"alias"`
	Version            string `json:"version"`
	NumActiveChannels  uint32 `json:"num_active_channels"`
	NumPendingChannels uint32 `json:"num_pending_channels"`
	BlockHeight        uint32 `json:"block_height"`
	SyncedToChain      bool   `json:"synced_to_chain"`
}

type listChannelsResponse struct {
	Channels []wireChannel `json:"channels"`
}

type wireChannel struct {
	ChanID                string `json:"chan_id"`
	RemotePubkey          string `json:"remote_pubkey"`
	Capacity              string `json:"capacity"`
	LocalBalance          string `json:"local_balance"`
	RemoteBalance         string `json:"remote_balance"`
	Active                bool   `json:"active"`
	Private               bool   `json:"private"`
	Uptime                string `json:"uptime"`
	Lifetime              string `json:"lifetime"`
	TotalSatoshisSent     string `json:"total_satoshis_sent"`
	TotalSatoshisReceived string `json:"total_satoshis_received"`
}

type forwardingHistoryRequest struct {
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	IndexOffset  uint32 `json:"index_offset"`
	NumMaxEvents uint32 `json:"num_max_events"`
}

type forwardingHistoryResponse struct {
	ForwardingEvents []wireForwardingEvent `json:"forwarding_events"`
	LastOffsetIndex  uint32                `json:"last_offset_index"`
}

type wireForwardingEvent struct {
	Timestamp string `json:"timestamp"`
	ChanIDIn  string `json:"chan_id_in"`
	ChanIDOut string `json:"chan_id_out"`
	AmtIn     string `json:"amt_in"`
	AmtOut    string `json:"amt_out"`
	Fee       string `json:"fee"`
	FeeMsat   string `json:"fee_msat"`
}

// GetInfo retrieves the node's identity and summary counters.
func (c *RESTClient) GetInfo(ctx context.Context) (*NodeInfo, error) {
	var resp getInfoResponse
	if err := c.do(ctx, http.MethodGet, "/v1/getinfo", nil, &resp); err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}

	return &NodeInfo{
		IdentityPubkey:     resp.IdentityPubkey,
		Alias:              resp.Alias,
		Version:            resp.Version,
		NumActiveChannels:  resp.NumActiveChannels,
		NumPendingChannels: resp.NumPendingChannels,
		BlockHeight:        resp.BlockHeight,
		SyncedToChain:      resp.SyncedToChain,
	}, nil
}

// ListChannels retrieves all open channels.
func (c *RESTClient) ListChannels(ctx context.Context) ([]Channel, error) {
	var resp listChannelsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/channels", nil, &resp); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	channels := make([]Channel, 0, len(resp.Channels))
	for _, wc := range resp.Channels {
		channels = append(channels, Channel{
			ChanID:                wc.ChanID,
			RemotePubkey:          wc.RemotePubkey,
			Capacity:              parseUint(wc.Capacity),
			LocalBalance:          parseUint(wc.LocalBalance),
			RemoteBalance:         parseUint(wc.RemoteBalance),
			Active:                wc.Active,
			Private:               wc.Private,
			Uptime:                parseUint(wc.Uptime),
			Lifetime:              parseUint(wc.Lifetime),
			TotalSatoshisSent:     parseUint(wc.TotalSatoshisSent),
			TotalSatoshisReceived: parseUint(wc.TotalSatoshisReceived),
		})
	}
	return channels, nil
}

// ForwardingHistory retrieves routed payments within the window, following
// the gateway's offset pagination until the window is exhausted.
func (c *RESTClient) ForwardingHistory(ctx context.Context, req ForwardingHistoryRequest) ([]ForwardingEvent, error) {
	var (
		events []ForwardingEvent
		offset uint32
	)

	for {
		body := forwardingHistoryRequest{
			IndexOffset:  offset,
			NumMaxEvents: forwardingPageSize,
		}
		if req.StartTime > 0 {
			body.StartTime = strconv.FormatUint(req.StartTime, 10)
		}
		if req.EndTime > 0 {
			body.EndTime = strconv.FormatUint(req.EndTime, 10)
		}

		var resp forwardingHistoryResponse
		if err := c.do(ctx, http.MethodPost, "/v1/switch", body, &resp); err != nil {
			return nil, fmt.Errorf("forwarding history: %w", err)
		}

		for _, we := range resp.ForwardingEvents {
			events = append(events, ForwardingEvent{
				Timestamp: parseUint(we.Timestamp),
				ChanIDIn:  we.ChanIDIn,
				ChanIDOut: we.ChanIDOut,
				AmtIn:     parseUint(we.AmtIn),
				AmtOut:    parseUint(we.AmtOut),
				Fee:       parseUint(we.Fee),
				FeeMsat:   parseUint(we.FeeMsat),
			})
		}

		if len(resp.ForwardingEvents) < forwardingPageSize {
			return events, nil
		}
		offset = resp.LastOffsetIndex
	}
}

// do performs one REST call with retries and exponential backoff.
func (c *RESTClient) do(ctx context.Context, method, path string, reqBody, result interface{}) error {
	var body []byte
	if reqBody != nil {
		var err error
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.macaroon != "" {
			req.Header.Set("Grpc-Metadata-Macaroon", c.macaroon)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		// Client errors are not retried; the request will not get better.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseUint converts the gateway's string-encoded integers, tolerating
// missing or malformed values as 0.
func parseUint(s string) uint64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
