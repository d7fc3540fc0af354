// Package ai generates operator-facing narrative summaries through a
// generic AI completion API, degrading to a deterministic template when the
// API is unavailable.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// CompletionClient produces a text completion for a prompt.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HTTPClient implements CompletionClient against a chat-completions style
// endpoint.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	maxElapsed time.Duration
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithMaxElapsedTime bounds the total retry budget.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.maxElapsed = d
	}
}

// NewHTTPClient creates a completion client.
func NewHTTPClient(endpoint, apiKey, model string, logger *zap.Logger, opts ...Option) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("completion API key is required")
	}

	c := &HTTPClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Named("ai_client"),
		maxElapsed: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compile-time interface check.
var _ CompletionClient = (*HTTPClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompts and returns the generated text, retrying
// transient failures with exponential backoff.
func (c *HTTPClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := completionRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   800,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	b.MaxInterval = 30 * time.Second

	var content string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("network error during completion request, retrying", zap.Error(err))
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("completion API status %d: %s", resp.StatusCode, string(respBody))
		default:
			return backoff.Permanent(fmt.Errorf("completion API status %d: %s", resp.StatusCode, string(respBody)))
		}

		var wire completionResponse
		if err := json.Unmarshal(respBody, &wire); err != nil {
			return backoff.Permanent(fmt.Errorf("decode completion response: %w", err))
		}
		if len(wire.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion API returned no choices"))
		}

		c.logger.Info("completion generated",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", wire.Usage.PromptTokens),
			zap.Int("completion_tokens", wire.Usage.CompletionTokens),
		)

		content = wire.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}
