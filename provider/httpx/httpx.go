package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sig-0/p2prates/types"
)

const maxErrorBody = 4096

// StatusError is a non-success upstream response
type StatusError struct {
	Body []byte
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid status code received: %d", e.Code)
}

// Is matches types.ErrUpstreamError
func (e *StatusError) Is(target error) bool {
	return target == types.ErrUpstreamError
}

type Option func(c *Client)

// WithUserAgent sets the User-Agent header for outgoing requests
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeader sets a static header for outgoing requests
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithRateLimit bounds the outgoing request rate with a token bucket.
// A non-positive rate disables limiting
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil

			return
		}

		if burst <= 0 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client is an upstream HTTP client with rate limiting
// and error classification
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	headers map[string]string

	userAgent string
}

// New creates a new upstream client, with the given total request timeout
func New(timeout time.Duration, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		headers:   make(map[string]string),
		userAgent: "p2prates/1.0",
	}

	// Apply the options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes the request, waiting on the rate limiter first.
// Network failures, timeouts and limiter waits past the deadline
// are classified as types.ErrUpstreamUnavailable
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", types.ErrUpstreamUnavailable, err)
		}
	}

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrUpstreamUnavailable, err)
	}

	return resp, nil
}

// GetJSON executes a GET request and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("unable to create GET request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	return c.doJSON(ctx, req, out)
}

// PostJSON executes a POST request with a JSON body and decodes
// the JSON response into out
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("unable to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("unable to create POST request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &StatusError{
			Code: resp.StatusCode,
			Body: body,
		}
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: unable to decode response: %w", types.ErrUpstreamError, err)
	}

	return nil
}
