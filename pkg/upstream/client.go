package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"proxima-hq/proxima/pkg/dispatch"
)

// Config contains configuration for an upstream client.
type Config struct {
	// Name is the upstream name, used in errors and logs.
	Name string

	// BaseURL is the upstream's API base URL.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the per-request timeout.
	// Default: 60s
	Timeout time.Duration

	// MaxRetries is the number of retry attempts for transient failures
	// (network errors and 5xx responses).
	// Default: 2
	MaxRetries int

	// MaxIdleConns bounds the transport's idle connection pool.
	// Default: 32
	MaxIdleConns int

	// MaxIdleConnsPerHost bounds idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// Health describes the upstream's observed health.
type Health struct {
	// IsHealthy is false after three consecutive failures.
	IsHealthy bool

	// LastCheck is when health was last updated.
	LastCheck time.Time

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// LastSuccessfulRequest is when a request last succeeded.
	LastSuccessfulRequest time.Time

	// TotalRequests counts all requests sent.
	TotalRequests int64

	// FailedRequests counts failed requests.
	FailedRequests int64

	// LastError is the most recent failure, nil while healthy.
	LastError error
}

// unhealthyThreshold is the number of consecutive failures after which the
// upstream is marked unhealthy.
const unhealthyThreshold = 3

// Client executes requests against one upstream endpoint with connection
// pooling, retries, and health tracking.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger

	healthMu sync.RWMutex
	health   Health
}

// NewClient creates an upstream client with a pooled transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("upstream name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 32
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 16
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	now := time.Now()
	return &Client{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "upstream", "upstream", cfg.Name),
		health: Health{
			IsHealthy:             true,
			LastCheck:             now,
			LastSuccessfulRequest: now,
		},
	}, nil
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// IsHealthy returns the current health status.
func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.IsHealthy
}

// GetHealth returns detailed health information.
func (c *Client) GetHealth() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// Do performs an HTTP request against the upstream with retry and backoff
// for transient failures. Authentication and client errors are returned
// without retrying.
func (c *Client) Do(ctx context.Context, req *dispatch.RequestOptions) (*dispatch.Response, error) {
	url := strings.TrimSuffix(c.config.BaseURL, "/") + req.Path

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if len(req.Body) > 0 {
			bodyReader = bytes.NewReader(req.Body)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range req.Headers {
			httpReq.Header.Set(key, value)
		}
		if c.config.APIKey != "" && httpReq.Header.Get("Authorization") == "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}
		if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = err
			c.recordRequest(false)

			if ctx.Err() != nil {
				return nil, &TimeoutError{
					Upstream: c.config.Name,
					Timeout:  c.config.Timeout,
				}
			}

			c.logger.Warn("request failed, will retry", "attempt", attempt+1, "error", err)
			continue
		}

		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			c.recordRequest(false)
			continue
		}

		if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
			c.recordRequest(true)
			c.updateHealth(true, nil)
			return &dispatch.Response{
				Success:    true,
				StatusCode: httpResp.StatusCode,
				Headers:    flattenHeaders(httpResp.Header),
				Body:       body,
				TokensUsed: extractTokenUsage(body),
			}, nil
		}

		switch httpResp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			c.recordRequest(false)
			c.updateHealth(false, fmt.Errorf("authentication failed"))
			return nil, &AuthError{
				Upstream: c.config.Name,
				Message:  string(body),
			}

		case http.StatusTooManyRequests:
			c.recordRequest(false)
			return nil, &RateLimitError{
				Upstream:   c.config.Name,
				RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
				Message:    string(body),
			}

		case http.StatusBadRequest:
			c.recordRequest(false)
			return nil, &Error{
				Upstream:   c.config.Name,
				StatusCode: httpResp.StatusCode,
				Message:    string(body),
			}

		default:
			lastErr = &Error{
				Upstream:   c.config.Name,
				StatusCode: httpResp.StatusCode,
				Message:    string(body),
			}
			c.recordRequest(false)
			c.logger.Warn("request returned error status, will retry",
				"status", httpResp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	c.updateHealth(false, lastErr)
	return nil, lastErr
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	c.logger.Info("upstream client closed")
	return nil
}

// updateHealth updates health status after a request outcome.
func (c *Client) updateHealth(success bool, err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastCheck = time.Now()

	if success {
		c.health.IsHealthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = nil
		c.health.LastSuccessfulRequest = time.Now()
		return
	}

	c.health.ConsecutiveFailures++
	c.health.LastError = err
	if c.health.ConsecutiveFailures >= unhealthyThreshold {
		c.health.IsHealthy = false
		c.logger.Warn("upstream marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// recordRequest records request counters.
func (c *Client) recordRequest(success bool) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	if !success {
		c.health.FailedRequests++
	}
}

// flattenHeaders keeps the first value of each response header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

// tokenUsage matches the OpenAI-style usage object found in completion
// responses.
type tokenUsage struct {
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// extractTokenUsage pulls the total token count out of a response body,
// returning 0 when the body carries no usage object.
func extractTokenUsage(body []byte) int {
	var u tokenUsage
	if err := json.Unmarshal(body, &u); err != nil {
		return 0
	}
	if u.Usage.TotalTokens > 0 {
		return u.Usage.TotalTokens
	}
	return u.Usage.PromptTokens + u.Usage.CompletionTokens
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
