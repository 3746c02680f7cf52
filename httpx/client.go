package httpx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// StatusCode returns the status carried by a *StatusError in err's chain,
// or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

type clientConfig struct {
	baseURL   string
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	headers   map[string]string
	hooks     []func(*resty.Client)
}

type ClientOption func(*clientConfig)

func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries retries transport failures and 5xx responses up to n times,
// waiting at least wait between attempts.
func WithRetries(n int, wait time.Duration) ClientOption {
	return func(c *clientConfig) {
		if n >= 0 {
			c.retries = n
		}
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithHeaders adds default headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *clientConfig) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithRestyHook runs fn on the underlying resty client after the other
// options are applied.
func WithRestyHook(fn func(*resty.Client)) ClientOption {
	return func(c *clientConfig) {
		if fn != nil {
			c.hooks = append(c.hooks, fn)
		}
	}
}

// Client is a JSON client over resty. Non-2xx responses come back as a
// *StatusError together with the response.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	cfg := clientConfig{
		timeout:   10 * time.Second,
		retryWait: 100 * time.Millisecond,
		headers:   map[string]string{"Content-Type": "application/json"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetTimeout(cfg.timeout).
		SetHeaders(cfg.headers)
	if cfg.baseURL != "" {
		rc.SetBaseURL(cfg.baseURL)
	}
	if cfg.retries > 0 {
		rc.SetRetryCount(cfg.retries).
			SetRetryWaitTime(cfg.retryWait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || (r != nil && r.StatusCode() >= 500)
			})
	}
	for _, hook := range cfg.hooks {
		hook(rc)
	}
	return &Client{resty: rc}
}

type RequestOption func(*resty.Request)

func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *resty.Request) { r.SetHeaders(headers) }
}

func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) { r.SetQueryParams(params) }
}

func WithBearer(token string) RequestOption {
	return func(r *resty.Request) {
		if token = strings.TrimSpace(token); token != "" {
			r.SetAuthToken(token)
		}
	}
}

func WithBasicAuth(user, password string) RequestOption {
	return func(r *resty.Request) { r.SetBasicAuth(user, password) }
}

// WithPathParams fills {name} placeholders in the path, escaping values.
func WithPathParams(params map[string]string) RequestOption {
	return func(r *resty.Request) { r.SetPathParams(params) }
}

func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, nil, result, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPost, path, body, result, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPut, path, body, result, opts)
}

func (c *Client) Delete(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodDelete, path, nil, result, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts []RequestOption) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	switch {
	case err != nil:
		return resp, err
	case resp.IsError():
		return resp, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	default:
		return resp, nil
	}
}
