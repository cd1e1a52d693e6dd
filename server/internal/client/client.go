package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
)

// DefaultHeader is the API key header the server expects by default.
const DefaultHeader = "X-API-Key"

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one server.
type Client struct {
	base   string
	key    string
	header string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in header on every write. An empty header means
// DefaultHeader.
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		if header == "" {
			header = DefaultHeader
		}
		c.header, c.key = header, key
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New returns a client for the server at base, e.g. http://localhost:8080.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// List returns the records passing f.
func (c *Client) List(ctx context.Context, f bump.Filter) (api.ListResponse, error) {
	var out api.ListResponse
	q := url.Values{}
	if f != "" {
		q.Set("filter", string(f))
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/bumps", q, nil, &out)
	return out, err
}

// Get returns one record.
func (c *Client) Get(ctx context.Context, id string) (api.BumpResponse, error) {
	var out api.BumpResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/bumps/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Update sets a record's health or status.
func (c *Client) Update(ctx context.Context, id string, req api.UpdateRequest) (api.BumpResponse, error) {
	var out api.BumpResponse
	err := c.do(ctx, http.MethodPatch, "/api/v1/bumps/"+url.PathEscape(id), nil, req, &out)
	return out, err
}

// Summary returns counts per status.
func (c *Client) Summary(ctx context.Context) (api.SummaryResponse, error) {
	var out api.SummaryResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/summary", nil, nil, &out)
	return out, err
}

// Preview returns the status health would derive to.
func (c *Client) Preview(ctx context.Context, health int) (api.PreviewResponse, error) {
	var out api.PreviewResponse
	q := url.Values{"health": {strconv.Itoa(health)}}
	err := c.do(ctx, http.MethodGet, "/api/v1/preview", q, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out interface{}) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}
