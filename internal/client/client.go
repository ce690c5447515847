// Package client provides a Go client for the practice server's REST API.
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
)

// DefaultBaseURL is the address of a locally started server.
const DefaultBaseURL = "http://localhost:3030"

const (
	headerAuthorization = "X-Authorization"
	headerAdmin         = "X-Admin"
)

// Record is one stored JSON object.
type Record = map[string]any

// Client talks to a practice server.
type Client struct {
	baseURL    string
	token      string
	admin      bool
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing with a local server).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAccessToken sends token in X-Authorization on every request.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithAdmin marks every request as an admin request.
func WithAdmin() Option {
	return func(c *Client) {
		c.admin = true
	}
}

// New creates a practice server client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions narrows and shapes a collection listing. Zero values are not
// sent.
type ListOptions struct {
	Where    string
	SortBy   string
	Offset   int
	PageSize int
	Distinct string
	Select   string
	Load     string
}

func (o *ListOptions) values() url.Values {
	v := url.Values{}
	if o == nil {
		return v
	}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("where", o.Where)
	set("sortBy", o.SortBy)
	set("distinct", o.Distinct)
	set("select", o.Select)
	set("load", o.Load)
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	return v
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("practice: unhealthy status %q", resp.Status)
	}
	return nil
}

// Register creates a user and returns it with its access token.
func (c *Client) Register(ctx context.Context, user Record) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodPost, "/users/register", nil, user, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Login exchanges credentials for the user record and its access token.
func (c *Client) Login(ctx context.Context, credentials Record) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodPost, "/users/login", nil, credentials, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout ends the session of the client's access token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/users/logout", nil, nil, nil)
}

// Me returns the user the access token belongs to.
func (c *Client) Me(ctx context.Context) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Collections returns the names of the public collections.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var resp []string
	if err := c.do(ctx, http.MethodGet, "/data", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// List returns the records of a collection. opts may be nil.
func (c *Client) List(ctx context.Context, collection string, opts *ListOptions) ([]Record, error) {
	var resp []Record
	if err := c.do(ctx, http.MethodGet, dataPath(collection), opts.values(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Count returns how many records List would return for the same options.
func (c *Client) Count(ctx context.Context, collection string, opts *ListOptions) (int, error) {
	v := opts.values()
	v.Set("count", "true")

	var n int
	if err := c.do(ctx, http.MethodGet, dataPath(collection), v, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Get returns one record.
func (c *Client) Get(ctx context.Context, collection, id string) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodGet, dataPath(collection, id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Create adds a record and returns it with its generated fields.
func (c *Client) Create(ctx context.Context, collection string, data Record) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodPost, dataPath(collection), nil, data, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Replace overwrites a record.
func (c *Client) Replace(ctx context.Context, collection, id string, data Record) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodPut, dataPath(collection, id), nil, data, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Update merges data into a record.
func (c *Client) Update(ctx context.Context, collection, id string, data Record) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodPatch, dataPath(collection, id), nil, data, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Delete removes a record and returns the {_deletedOn} marker.
func (c *Client) Delete(ctx context.Context, collection, id string) (Record, error) {
	var resp Record
	if err := c.do(ctx, http.MethodDelete, dataPath(collection, id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Throttle reports whether response throttling is on. An unset flag reads
// as false.
func (c *Client) Throttle(ctx context.Context) (bool, error) {
	var on any
	if err := c.do(ctx, http.MethodGet, "/util/throttle", nil, nil, &on); err != nil {
		return false, err
	}
	b, _ := on.(bool)
	return b, nil
}

// SetThrottle turns response throttling on or off.
func (c *Client) SetThrottle(ctx context.Context, on bool) error {
	return c.do(ctx, http.MethodPost, "/util", nil, Record{"throttle": on}, nil)
}

func dataPath(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/data/" + strings.Join(escaped, "/")
}

// do sends one request and decodes a 200 body into out. A 204 leaves out
// untouched.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set(headerAuthorization, c.token)
	}
	if c.admin {
		httpReq.Header.Set(headerAdmin, "true")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil
	default:
		return parseError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError builds an APIError from an error response. Bodies that are
// not the server's error shape keep the status code and the HTTP status text.
func parseError(statusCode int, body []byte) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Code = statusCode
		apiErr.Message = http.StatusText(statusCode)
	}
	apiErr.StatusCode = statusCode
	return apiErr
}
