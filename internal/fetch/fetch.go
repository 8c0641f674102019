// Package fetch issues authenticated HTTP GETs against a Maven-style
// repository base URL. It has no opinion on the meaning of a non-2xx status
// or a transport failure — that classification belongs to the resolver,
// which knows which path it was fetching and why.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("fetch")

// Client issues GET requests against one repository base URL, attaching
// whichever credentials were configured.
type Client struct {
	baseURL   string
	userAgent string
	username  string
	password  string
	token     string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth attaches HTTP Basic credentials to every request. Ignored if
// either username or password is empty.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithBearerToken attaches a Bearer token to every request. Ignored if
// Basic auth is also configured: Basic takes precedence.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient overrides the underlying *http.Client, e.g. in tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a Client for the given repository base URL. The base
// is normalized by stripping any trailing slash; a malformed base URL
// returns an error.
func NewClient(baseURL, userAgent string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid repository url %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		http:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL joins the client's base URL with a repository-relative path, never
// producing a double slash.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Get issues an authenticated GET for path (relative to the base URL) and
// returns the raw response. The caller is responsible for checking the
// status code and closing the body.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	full := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", full, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	switch {
	case c.username != "" && c.password != "":
		req.SetBasicAuth(c.username, c.password)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	log.Debug("GET %s", full)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", full, err)
	}
	return resp, nil
}
