package api

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

	"fintrack/internal/log"
	"fintrack/internal/ratelimit"
	"fintrack/internal/trace"
)

// TokenSource supplies the bearer token attached to authenticated requests.
type TokenSource interface {
	Token() (string, error)
}

// RequestError is returned for any response outside [200,299]. Detail is the
// server-supplied message from a JSON {"detail": ...} body when parseable,
// otherwise the raw response text.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// ErrThrottled is returned when the outbound rate limiter rejects a request
// before it is sent.
var ErrThrottled = errors.New("outbound request throttled")

// Client issues JSON requests against the finance API. One attempt per call:
// no retry, no redirect-and-retry, no request coalescing. Deduplication of
// reads is the cache's job, not the transport's.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *ratelimit.Limiter
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", parsed.Scheme)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// requestOptions holds per-call settings.
type requestOptions struct {
	skipAuth    bool
	contentType string
}

// RequestOption configures one request.
type RequestOption func(*requestOptions)

// WithoutAuth sends the request without an Authorization header regardless
// of token availability (session bootstrap endpoints).
func WithoutAuth() RequestOption {
	return func(o *requestOptions) { o.skipAuth = true }
}

// WithContentType overrides the Content-Type header; used for multipart
// bodies which are passed through unmodified.
func WithContentType(ct string) RequestOption {
	return func(o *requestOptions) { o.contentType = ct }
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do performs a single request. body may be nil, an io.Reader (sent raw) or
// any JSON-marshalable value. out may be nil to discard the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	target, err := c.resolve(path)
	if err != nil {
		return err
	}

	if c.limiter != nil && !c.limiter.Allow(target.Host) {
		return fmt.Errorf("%w: %s %s", ErrThrottled, method, path)
	}

	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
		if options.contentType != "" {
			contentType = options.contentType
		}
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if !options.skipAuth && c.tokens != nil {
		// A missing token is not an error here: the request goes out
		// unauthenticated and the server answers 401.
		if token, err := c.tokens.Token(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	requestID := trace.Tag(req)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "api request",
		log.FieldRequestID, requestID,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatus, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	detail := strings.TrimSpace(string(raw))

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	}

	return &RequestError{Status: resp.StatusCode, Detail: detail}
}
