package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxResponseBytes caps how much of an E-utilities response is read into memory.
const maxResponseBytes = 32 << 20

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second without an API key.
	RateLimit float64

	// KeyedRateLimit is the maximum requests per second for requests that
	// carry an api_key. Zero uses KeyedRate.
	KeyedRateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of extra attempts after a transient failure.
	// Zero, the default, sends every request exactly once.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// HTTPClient wraps http.Client with rate limiting and optional retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client  *http.Client
	limiter *RateLimiter
	config  HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = AnonymousRate
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-PubMedExplorer/1.0"
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: NewRateLimiter(cfg.RateLimit, cfg.KeyedRateLimit, cfg.BurstSize),
		config:  cfg,
	}
}

// Get issues a GET request and returns the response body and status code.
// A non-2xx status is not an error here; callers decide what it means.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Do executes an HTTP request after waiting on the rate limiter bucket that
// matches the request's api_key parameter.
//
// When MaxRetries is positive, network errors, 429 and 5xx responses are
// retried with Retry-After support. Requests with a body must set GetBody
// to be retried.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if err := c.limiter.WaitRequest(req); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		delay := c.config.RetryDelay
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if attempt >= c.config.MaxRetries {
				return nil, fmt.Errorf("request failed: %w", err)
			}
		case shouldRetry(resp.StatusCode) && attempt < c.config.MaxRetries:
			delay = c.retryDelay(resp)
			drain(resp)
		default:
			return resp, nil
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, fmt.Errorf("cannot retry request: %w", err)
		}
	}
}

// shouldRetry returns true if the status code indicates a transient failure.
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= 500 && statusCode < 600)
}

// retryDelay honours a Retry-After header given in seconds or as an HTTP date.
func (c *HTTPClient) retryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return c.config.RetryDelay
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
