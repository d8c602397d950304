// Package remote is the HTTP client for the assistant API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

// Asker answers a query with a live answer.
type Asker interface {
	Ask(ctx context.Context, query string) (*Answer, error)
}

// Client talks to the assistant API. Ask and Ping are single attempts;
// Snapshot retries per Config.Retry.
type Client struct {
	httpClient   *http.Client
	healthClient *http.Client
	baseURL      string
	retry        RetryConfig
	logger       *observability.Logger
}

// Config holds remote client configuration.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	Retry         RetryConfig
}

// NewClient creates a new API client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if logger == nil {
		logger = observability.Nop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 3 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		healthClient: &http.Client{Timeout: healthTimeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		retry:        cfg.Retry.withDefaults(),
		logger:       logger.WithComponent("remote"),
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask posts a query to /api/ask.
func (c *Client) Ask(ctx context.Context, query string) (*Answer, error) {
	jsonBody, err := json.Marshal(AskRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	body, err := c.do(ctx, http.MethodPost, "/api/ask", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	var resp AskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.RemoteError("invalid response", fmt.Errorf("unmarshal response: %w", err))
	}

	answer, err := resp.validate()
	if err != nil {
		return nil, domain.RemoteError("invalid response", err)
	}

	c.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("sources", len(answer.Sources)).
		Bool("learnable", answer.Learnable()).
		Msg("Live answer received")

	return answer, nil
}

// Snapshot fetches the full knowledge base. Items without content are dropped.
func (c *Client) Snapshot(ctx context.Context) ([]storage.Record, error) {
	body, err := c.withRetry(ctx, "snapshot", func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/api/knowledge-base", nil)
	})
	if err != nil {
		return nil, err
	}

	var items []SnapshotItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, domain.RemoteError("invalid snapshot", fmt.Errorf("unmarshal snapshot: %w", err))
	}

	records := make([]storage.Record, 0, len(items))
	for _, it := range items {
		if rec, ok := it.record(); ok {
			records = append(records, rec)
		}
	}

	if dropped := len(items) - len(records); dropped > 0 {
		c.logger.Warn().Int("dropped", dropped).Msg("Snapshot items without content skipped")
	}
	return records, nil
}

// Ping checks the health endpoint with the short health timeout.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return domain.NewError(domain.ErrorTypeConnectivity, "api unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.NewError(domain.ErrorTypeConnectivity, "api unhealthy", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.RemoteError("request failed", &statusError{err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.RemoteError("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			return nil, domain.RemoteError("api error", &statusError{code: resp.StatusCode, err: errors.New(errResp.Error)})
		}
		return nil, domain.RemoteError("api error", &statusError{code: resp.StatusCode, err: fmt.Errorf("status %d", resp.StatusCode)})
	}

	return data, nil
}
