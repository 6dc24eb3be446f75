// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend implements the HTTP client for the Parley chat gateway.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the default timeout for non-streaming API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerMinute is the default client-side rate limit.
	// Protects user-billed credentials from accidental request bursts.
	DefaultRequestsPerMinute = 60

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all non-streaming gateway requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests.
	// No timeout: a generation's lifetime is controlled via context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoToken indicates no bearer token is configured on the client.
	ErrNoToken = errors.New("gateway token not configured")

	// ErrAuthFailed indicates the gateway rejected the bearer token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the gateway throttled the request.
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents a non-2xx response from the gateway.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway error (HTTP %d)", e.Status)
}

// apiErrorResponse is the gateway's error payload.
type apiErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT TYPE
// =============================================================================

// Client is an HTTP client for the Parley gateway.
//
// One Client serves one account; the bearer token is set after login and
// attached to every request. Chat generations stream; everything else is
// plain request/response plumbing.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: "parley/0.2.0",
		limiter:   rate.NewLimiter(rate.Limit(float64(DefaultRequestsPerMinute)/60.0), 5),
	}
}

// WithBaseURL sets a custom base URL.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout sets a per-request timeout for non-streaming calls.
// Streaming chat requests are unaffected; their lifetime is the caller's
// context.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithRateLimit sets the client-side request rate limit.
func (c *Client) WithRateLimit(requestsPerMinute int) *Client {
	if requestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 5)
	}
	return c
}

// SetToken sets the bearer token used for authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// HasToken returns true if a bearer token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// setHeaders sets the required headers for gateway requests.
func (c *Client) setHeaders(req *http.Request, authenticated bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// logRequest logs an API request without exposing sensitive data.
// Headers (auth) and bodies (message text) are never logged.
func (c *Client) logRequest(method, path string) {
	log.Printf("gateway request: %s %s", method, path)
}

// logResponse logs an API response with duration; no body.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("gateway response: %d (%v)", resp.StatusCode, duration)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// handleErrorResponse converts non-2xx responses to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, apiErr.Error)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error)
		default:
			return &APIError{Status: statusCode, Message: apiErr.Error}
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Status: statusCode, Message: strings.TrimSpace(string(body))}
	}
}

// readResponse reads a non-streaming response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// doJSON performs a non-streaming JSON request and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out interface{}, authenticated bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, authenticated)

	c.logRequest(method, path)
	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
