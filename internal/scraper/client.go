// internal/scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// Config defines the network policy shared by every upstream request:
// credential, user agent, proxy, timeout, retry budget, and pacing.
type Config struct {
	Cookie        string
	UserAgent     string
	Proxy         string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RateLimit     float64 // requests per second
	RateBurst     int
}

// Client is the process-wide HTTP client for the content platform. The
// connection pool is shared by all concurrent operations; configuration is
// read-only after construction.
type Client struct {
	httpClient *http.Client
	noRedirect *http.Client
	limiter    *rate.Limiter
	config     Config
	logger     utils.Logger
	metrics    *monitoring.Metrics
}

const maxBackoff = 10 * time.Second

// New creates a client with the given policy. An invalid proxy address is a
// construction error rather than a per-request surprise.
func New(config Config, logger utils.Logger, metrics *monitoring.Metrics) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", config.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		noRedirect: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Get performs a GET with retry on transient failure. Non-retryable HTTP
// error statuses fail immediately; retryable ones and transport errors are
// retried up to the configured budget with a bounded linear backoff.
func (c *Client) Get(ctx context.Context, targetURL string, headers map[string]string) (*http.Response, error) {
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", targetURL, err)
	}

	var lastErr error
	lastCode := 0

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
		if attempt > 0 {
			c.metrics.ObserveRetry()
			c.logger.Debugf("retrying request (attempt %d/%d): %s", attempt+1, c.config.RetryAttempts+1, targetURL)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setRequestHeaders(req, headers)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.metrics.ObserveRequest("transport_error")
			if attempt < c.config.RetryAttempts {
				c.waitForRetry(ctx, attempt)
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.metrics.ObserveRequest("success")
			return resp, nil
		}

		resp.Body.Close()
		lastCode = resp.StatusCode
		lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		c.metrics.ObserveRequest("http_error")

		if !shouldRetryStatusCode(resp.StatusCode) {
			break
		}
		if attempt < c.config.RetryAttempts {
			c.waitForRetry(ctx, attempt)
		}
	}

	return nil, &apperrors.FetchError{URL: targetURL, Code: lastCode, Err: lastErr}
}

// ExpandShortLink follows redirects hop by hop until a non-redirect response
// is reached, returning the canonical URL. Each hop is a network call under
// the normal retry policy.
func (c *Client) ExpandShortLink(ctx context.Context, shortURL string) (string, error) {
	const maxHops = 10

	current := shortURL
	for hop := 0; hop < maxHops; hop++ {
		resp, err := c.getNoRedirect(ctx, current)
		if err != nil {
			return "", err
		}
		location := resp.Header.Get("Location")
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
			return current, nil
		}

		next, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
		}
		base, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", current, err)
		}
		current = base.ResolveReference(next).String()
	}
	return current, nil
}

// getNoRedirect issues a single non-following GET with transport-level
// retries.
func (c *Client) getNoRedirect(ctx context.Context, targetURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setRequestHeaders(req, nil)

		resp, err := c.noRedirect.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.metrics.ObserveRetry()
		if attempt < c.config.RetryAttempts {
			c.waitForRetry(ctx, attempt)
		}
	}
	return nil, &apperrors.FetchError{URL: targetURL, Err: lastErr}
}

// setRequestHeaders applies browser-like defaults, then per-call headers.
func (c *Client) setRequestHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")

	for key, value := range headers {
		req.Header.Set(key, value)
	}
}

// waitForRetry sleeps for the bounded backoff delay: the base delay scaled
// linearly by attempt number, capped at maxBackoff.
func (c *Client) waitForRetry(ctx context.Context, attempt int) {
	delay := c.config.RetryDelay * time.Duration(attempt+1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// shouldRetryStatusCode reports whether a status code warrants a retry.
func shouldRetryStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
