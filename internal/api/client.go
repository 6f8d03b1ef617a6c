package api

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

	"go.uber.org/zap"
	"substore-client/internal/domain"
	"substore-client/internal/usage"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 32 * 1024 * 1024
)

// Client talks to the subscription-management API rooted at baseURL.
type Client struct {
	baseURL string
	http    *http.Client
	cache   usage.Store
	now     func() time.Time
	logger  *zap.Logger
	metrics domain.MetricsCollector
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithCache(store usage.Store) Option {
	return func(c *Client) {
		c.cache = store
	}
}

// WithClock replaces time.Now for cache timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics domain.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		now:     time.Now,
		logger:  zap.NewNop(),
		metrics: domain.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		store, err := usage.NewLRUStore(usage.DefaultSize, usage.DefaultTTL)
		if err != nil {
			return nil, err
		}
		c.cache = store
	}
	c.logger = c.logger.With(zap.String("component", "api"))

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		return e.Error.Code
	}
	return ""
}

// do issues one request. Transport failures become network errors and
// HTTP error statuses become API errors; both evict the usage cache
// entry keyed by the request URL.
func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, []byte, error) {
	start := time.Now()

	resp, payload, err := c.roundTrip(ctx, method, url, body)
	outcome := "success"
	if err != nil {
		outcome = "network_error"
		if errors.Is(err, ErrAPI) {
			outcome = "api_error"
		}
		c.cache.Remove(url)
	}

	c.metrics.RecordRequest(method, outcome, time.Since(start))
	c.logger.Debug("request finished",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)))

	return resp, payload, err
}

func (c *Client) roundTrip(ctx context.Context, method, url string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, networkError(method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, networkError(method, url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, networkError(method, url, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := http.StatusText(resp.StatusCode)
		var env envelope
		if json.Unmarshal(payload, &env) == nil && env.message() != "" {
			message = env.message()
		}
		return resp, payload, apiError(method, url, resp.StatusCode, message)
	}

	return resp, payload, nil
}

// call sends a JSON request to path and decodes the envelope's data
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	url := c.baseURL + path

	resp, payload, err := c.do(ctx, method, url, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.cache.Remove(url)
		return apiError(method, url, resp.StatusCode, fmt.Sprintf("malformed response envelope: %v", err))
	}
	if env.Status != "success" {
		c.cache.Remove(url)
		message := env.message()
		if message == "" {
			message = fmt.Sprintf("unexpected status %q", env.Status)
		}
		return apiError(method, url, resp.StatusCode, message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apiError(method, url, resp.StatusCode, fmt.Sprintf("malformed response data: %v", err))
	}
	return nil
}
