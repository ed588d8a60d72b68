package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout for a single collaborator call.
	DefaultTimeout = 5 * time.Second
	// APIKeyHeader is the header name for API key
	APIKeyHeader = "X-API-Key"
)

// Config holds the connection settings of one collaborator.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPError is returned when a collaborator answers with a non-2xx status.
type HTTPError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// Client is a JSON HTTP client bound to one collaborator.
type Client struct {
	http    *http.Client
	baseURL string
	name    string
	timeout time.Duration
	headers http.Header
	logger  logrus.FieldLogger
}

// New creates a Client. Outbound calls are traced as New Relic external
// segments when the request context carries a transaction.
func New(name string, cfg Config, logger logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := make(http.Header)
	if cfg.APIKey != "" {
		headers.Set(APIKeyHeader, cfg.APIKey)
	}

	return &Client{
		http:    &http.Client{Transport: newrelic.NewRoundTripper(http.DefaultTransport)},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		name:    name,
		timeout: timeout,
		headers: headers,
		logger:  logger.WithField("service", name),
	}
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// GetJSON performs a GET request and decodes the JSON response into result.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, result any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, result)
}

// SendJSON performs a request with a JSON body and decodes the JSON
// response into result when it is non-nil.
func (c *Client) SendJSON(ctx context.Context, method, endpoint string, body, result any) error {
	return c.do(ctx, method, endpoint, body, result)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.WithFields(logrus.Fields{"method": method, "url": target})
	logger.Debug("making HTTP request")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.WithError(err).Error("HTTP request failed")
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	logger.WithField("status_code", resp.StatusCode).Debug("HTTP request completed")

	if resp.StatusCode >= 400 {
		return &HTTPError{
			Service:    c.name,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", c.name, err)
	}

	return nil
}

// errorMessage extracts {"message": "..."} or {"error": "..."} from an
// error response, falling back to the status text.
func errorMessage(resp *http.Response) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	return http.StatusText(resp.StatusCode)
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
