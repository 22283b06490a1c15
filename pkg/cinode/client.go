package cinode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"
	"cinodeharvest/pkg/ratelimit"
	"cinodeharvest/pkg/retry"
)

// Options configures a Client
type Options struct {
	Timeout time.Duration
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Logger  logger.Logger
	// HTTPClient overrides the transport, mainly for tests
	HTTPClient *http.Client
}

// Client issues authenticated GET requests against the Cinode API.
// Once halted it refuses every further request.
type Client struct {
	httpClient *http.Client
	token      string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger

	mu       sync.Mutex
	haltedBy error
}

// NewClient creates a client sending token as bearer credential
func NewClient(token string, opts Options) *Client {
	log := logger.OrGlobal(opts.Logger)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.Logger = log
	}

	return &Client{
		httpClient: httpClient,
		token:      token,
		limiter:    limiter,
		retry:      retryCfg,
		logger:     log,
	}
}

// Halt latches the client; every later call fails with reason
func (c *Client) Halt(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haltedBy == nil {
		c.haltedBy = reason
		c.logger.WithError(reason).Warn("API client halted")
	}
}

// Halted returns the halt reason, or nil while the client is usable
func (c *Client) Halted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haltedBy
}

// Get performs a paced GET request. Transport failures are retried;
// any HTTP response is returned as-is and the caller closes its body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*http.Response, error) {
		return c.do(ctx, url)
	}, c.retry)
}

// FetchText returns the raw body of url regardless of status code
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body of "+url)
	}

	return string(body), nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	if reason := c.Halted(); reason != nil {
		return nil, fmt.Errorf("request to %s refused: %w", url, reason)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "GET "+url)
	}

	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))
	return resp, nil
}
