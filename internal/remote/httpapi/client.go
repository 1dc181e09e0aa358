// Package httpapi implements the remote ports over the expense service's
// HTTP API.
package httpapi

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

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
)

// maxBodyBytes caps how much of a reply is read.
const maxBodyBytes = 1 << 20

var _ remote.Service = (*Client)(nil)

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	transport *Transport
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New builds a client for the service rooted at baseURL. A base URL without
// a scheme gets https.
func New(baseURL string, logger *log.Logger, opts ...Option) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = NewTransport(c.http.Transport, logger)
	c.http.Transport = c.transport
	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// Metrics exposes the tracing transport counters.
func (c *Client) Metrics() Metrics {
	return c.transport.Metrics()
}

// Close drops idle keep-alive connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Login posts credentials to /user/login.
func (c *Client) Login(ctx context.Context, cred core.Credentials) (remote.Response, error) {
	return c.do(ctx, http.MethodPost, c.endpoint("user", "login"), cred)
}

// Register posts credentials to /user/create.
func (c *Client) Register(ctx context.Context, cred core.Credentials) (remote.Response, error) {
	return c.do(ctx, http.MethodPost, c.endpoint("user", "create"), cred)
}

// ListEntries fetches /user/{username}/entries and tags the payload by shape.
func (c *Client) ListEntries(ctx context.Context, username string) (remote.EntryListing, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("user", username, "entries"), nil)
	if err != nil {
		return remote.EntryListing{}, err
	}
	return remote.DecodeEntryListing(resp.Body)
}

// CreateEntry posts the draft to /entry/{username}/create.
func (c *Client) CreateEntry(ctx context.Context, username string, d core.EntryDraft) (remote.Response, error) {
	return c.do(ctx, http.MethodPost, c.endpoint("entry", username, "create"), d)
}

// DeleteEntry issues DELETE /entry/{id}/delete.
func (c *Client) DeleteEntry(ctx context.Context, id core.EntryID) (remote.Response, error) {
	return c.do(ctx, http.MethodDelete, c.endpoint("entry", id.String(), "delete"), nil)
}

// FetchStats reads /user/{username}/{month}/{year}/stats.
func (c *Client) FetchStats(ctx context.Context, username string, p core.Period) (core.StatsSnapshot, error) {
	path := c.endpoint("user", username, strconv.Itoa(p.Month), strconv.Itoa(p.Year), "stats")
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return core.StatsSnapshot{}, err
	}
	var snap core.StatsSnapshot
	if err := json.Unmarshal(resp.Body, &snap); err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("decode stats: %w", err)
	}
	return snap, nil
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = u.Path + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	return u.String()
}

// do sends the request and returns the body of a 2xx reply. A non-2xx reply
// becomes a *remote.RemoteError carrying the server's message.
func (c *Client) do(ctx context.Context, method, target string, payload any) (remote.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return remote.Response{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return remote.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return remote.Response{}, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return remote.Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remote.Response{}, &remote.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    remote.MessageFromBody(data),
		}
	}
	return remote.Response{StatusCode: resp.StatusCode, Body: data}, nil
}
