// Package apiclient is the gateway to the website generation backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is used when no API_URL is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// RequestIDHeader carries a per-call id to the backend for log correlation.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 64 << 10

// Client is a stateless wrapper over the backend HTTP contract.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the backend rooted at baseURL. An empty baseURL
// falls back to DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GenerateWebsite asks the backend to generate a website.
func (c *Client) GenerateWebsite(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedWebsite, error) {
	var out domain.GeneratedWebsite
	if err := c.do(ctx, "generate website", http.MethodPost, "/generate-website", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects returns a page of stored projects in server order. An empty
// websiteType lists every type.
func (c *Client) ListProjects(ctx context.Context, skip, limit int, websiteType domain.WebsiteType) ([]domain.Project, error) {
	if skip < 0 {
		return nil, errors.Errorf("list projects: skip must be >= 0, got %d", skip)
	}
	if limit <= 0 {
		return nil, errors.Errorf("list projects: limit must be > 0, got %d", limit)
	}

	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	if websiteType != "" {
		q.Set("website_type", string(websiteType))
	}

	var out []domain.Project
	if err := c.do(ctx, "list projects", http.MethodGet, "/projects", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Project{}
	}
	return out, nil
}

// GetProject fetches a single project. A missing project yields an error
// matching ErrNotFound.
func (c *Client) GetProject(ctx context.Context, id domain.ID) (*domain.Project, error) {
	var out domain.Project
	if err := c.do(ctx, "get project", http.MethodGet, "/projects/"+url.PathEscape(id.String()), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project. Deleting twice fails with ErrNotFound.
func (c *Client) DeleteProject(ctx context.Context, id domain.ID) error {
	return c.do(ctx, "delete project", http.MethodDelete, "/projects/"+url.PathEscape(id.String()), nil, nil, nil)
}

// Ping checks the liveness endpoint and returns why it is not healthy.
func (c *Client) Ping(ctx context.Context) error {
	resp, body, err := c.roundTrip(ctx, "check health", http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Op: "check health", StatusCode: resp.StatusCode, Detail: detailFromBody(body)}
	}
	status := gjson.GetBytes(body, "status").String()
	if status != "healthy" {
		return errors.Errorf("check health: backend reported status %q", status)
	}
	return nil
}

// CheckHealth reports whether the backend says it is healthy. It never
// fails: every error is mapped to false.
func (c *Client) CheckHealth(ctx context.Context) bool {
	if err := c.Ping(ctx); err != nil {
		c.logger.Debug("Health check failed", "base_url", c.baseURL, "error", err)
		return false
	}
	return true
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	resp, body, err := c.roundTrip(ctx, op, method, path, query, in)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Op: op, StatusCode: resp.StatusCode, Detail: detailFromBody(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, in any) (*http.Response, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s: encode request", op)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug("Backend request", "op", op, "method", method, "url", u, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", "op", op, "error", closeErr)
		}
	}()

	limit := int64(-1)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		limit = maxErrorBody
	}
	body, err := readBody(resp.Body, limit)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: errors.Wrap(err, "read response")}
	}

	c.logger.Debug("Backend response", "op", op, "status", resp.StatusCode, "request_id", requestID, "bytes", len(body))
	return resp, body, nil
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
