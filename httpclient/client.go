// Package httpclient implements flow.HTTPClient over resty.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/meikuraledutech/flow"
)

// DefaultTimeout bounds one outgoing call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client performs the outgoing calls of http_request blocks. JSON responses
// are decoded; any other body is returned as text.
type Client struct {
	rc *resty.Client
}

var _ flow.HTTPClient = (*Client)(nil)

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(rc *resty.Client) { rc.SetTimeout(d) }
}

// WithHeader adds a header sent with every call.
func WithHeader(name, value string) Option {
	return func(rc *resty.Client) { rc.SetHeader(name, value) }
}

// WithRetries retries failed calls up to n times.
func WithRetries(n int) Option {
	return func(rc *resty.Client) { rc.SetRetryCount(n) }
}

// New returns a Client.
func New(opts ...Option) *Client {
	rc := resty.New().SetTimeout(DefaultTimeout)
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{rc: rc}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}

// Do sends req. A response with status >= 400 is returned together with an
// error.
func (c *Client) Do(ctx context.Context, req flow.HTTPRequest) (*flow.HTTPResult, error) {
	r := c.rc.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query)
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s %s: %w", req.Method, req.URL, err)
	}

	result := &flow.HTTPResult{
		Status:  res.StatusCode(),
		Headers: make(map[string]string, len(res.Header())),
		Data:    decode(res.Header().Get("Content-Type"), res.Bytes()),
	}
	for name := range res.Header() {
		result.Headers[name] = res.Header().Get(name)
	}

	if result.Status >= 400 {
		return result, fmt.Errorf("httpclient: %s %s: status %d", req.Method, req.URL, result.Status)
	}
	return result, nil
}

func decode(contentType string, body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if strings.Contains(contentType, "json") {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	return string(body)
}
