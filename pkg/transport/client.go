package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
	"instaapi/pkg/ratelimit"
	"instaapi/pkg/retry"
)

// Options configures the HTTP client
type Options struct {
	// Timeout for each request
	Timeout time.Duration
	// MaxRetries for network errors and retryable status codes
	MaxRetries int
	// Proxy URL, empty for direct connection
	Proxy string
	// Limiter throttles outgoing requests, nil disables throttling
	Limiter ratelimit.Limiter
	// RetryBackoff overrides the default exponential backoff
	RetryBackoff retry.BackoffStrategy
	// Logger for request auditing
	Logger logger.Logger
}

// Response is a fully drained HTTP response. Buffering the body keeps the
// retry loop free to replay requests and lets callers inspect body and
// headers in any order.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into target
func (r *Response) DecodeJSON(target interface{}) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    r.StatusCode,
		}
	}
	return nil
}

// Client is the shared HTTP layer for web and mobile API endpoints. It owns
// the cookie jar, so the CSRF and session cookies set by one request are
// visible to every later request in the flow.
type Client struct {
	httpClient *http.Client
	jar        *cookiejar.Jar

	mu      sync.RWMutex
	headers map[string]string

	limiter    ratelimit.Limiter
	maxRetries int
	backoff    retry.BackoffStrategy
	logger     logger.Logger
}

// NewClient creates an HTTP client with browser-shaped default headers
func NewClient(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport,
		},
		jar: jar,
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		limiter:    opts.Limiter,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     log,
	}, nil
}

// SetHeader sets a default header applied to every request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// SetHeaders sets multiple default headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range headers {
		c.headers[key] = value
	}
}

// DeleteHeader removes a default header
func (c *Client) DeleteHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.headers, key)
}

// CookieValue returns the value of a named cookie for the given URL,
// or empty when absent
func (c *Client) CookieValue(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// SetCookie installs a cookie into the jar for the given URL
func (c *Client) SetCookie(rawURL string, cookie *http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid cookie URL %q: %w", rawURL, err)
	}
	c.jar.SetCookies(u, []*http.Cookie{cookie})
	return nil
}

// ClearCookies resets the cookie jar
func (c *Client) ClearCookies() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to reset cookie jar: %w", err)
	}
	c.jar = jar
	c.httpClient.Jar = jar
	return nil
}

// Get performs a GET request. extra headers override the defaults for this
// request only. Non-2xx responses are returned, not turned into errors;
// login endpoints carry meaningful JSON on 4xx.
func (c *Client) Get(ctx context.Context, rawURL string, extra map[string]string) (*Response, error) {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, extra)
}

// GetJSON performs a GET request, enforces a success status, and decodes
// the JSON body into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, extra map[string]string, target interface{}) error {
	resp, err := c.Get(ctx, rawURL, extra)
	if err != nil {
		return err
	}
	if err := CheckStatus(resp, rawURL); err != nil {
		return err
	}
	return resp.DecodeJSON(target)
}

// PostForm performs a form-encoded POST request
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, extra map[string]string) (*Response, error) {
	encoded := form.Encode()
	merged := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range extra {
		merged[k] = v
	}
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
	}, merged)
}

// PostFormJSON performs a form POST, enforces a success status, and decodes
// the JSON body into target
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, extra map[string]string, target interface{}) error {
	resp, err := c.PostForm(ctx, rawURL, form, extra)
	if err != nil {
		return err
	}
	if err := CheckStatus(resp, rawURL); err != nil {
		return err
	}
	return resp.DecodeJSON(target)
}

// doWithRetry replays the request builder through the retry policy. A fresh
// request per attempt keeps POST bodies replayable.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), extra map[string]string) (*Response, error) {
	attempt := func() (*Response, error) {
		req, err := build()
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
			}
		}
		resp, err := c.do(req, extra)
		if err != nil {
			return nil, err
		}
		if errs.IsRetryableStatusCode(resp.StatusCode) {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeServerError,
				Message: fmt.Sprintf("server returned status %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return resp, nil
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.maxRetries + 1
	cfg.Context = ctx
	cfg.Logger = c.logger
	if c.backoff != nil {
		cfg.Backoff = c.backoff
	}

	return retry.DoWithResult(attempt, cfg)
}

// do sends one request with merged headers and drains the body
func (c *Client) do(req *http.Request, extra map[string]string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &errs.TransportError{Op: "rate limit wait", Err: err}
		}
	}

	c.mu.RLock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.mu.RUnlock()
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.TransportError{
			Op:  fmt.Sprintf("%s %s", req.Method, req.URL),
			Err: err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.TransportError{
			Op:  fmt.Sprintf("read %s", req.URL),
			Err: err,
		}
	}

	logger.LogRequest(req.Method, req.URL.String(), resp.StatusCode, float64(duration.Milliseconds()))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CheckStatus maps a non-success response to a typed error
func CheckStatus(resp *Response, rawURL string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: fmt.Sprintf("authentication required for %s", rawURL),
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: fmt.Sprintf("resource not found: %s", rawURL),
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
