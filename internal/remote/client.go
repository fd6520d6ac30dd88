package remote

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

	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
)

// APIError is a non-success reply from the record service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to a record service. It implements query.Source and
// persist.Applier. Transport failures and gateway errors surface as
// *query.ConnectivityError so callers can fall back to local data.
type Client struct {
	base string
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find implements query.Source.
func (c *Client) Find(ctx context.Context, q query.Query) (*query.ResultSet, error) {
	var rs query.ResultSet
	if err := c.do(ctx, http.MethodPost, "/v1/query", q, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Count implements query.Source.
func (c *Client) Count(ctx context.Context, q query.Query) (int, error) {
	var resp CountResponse
	if err := c.do(ctx, http.MethodPost, "/v1/count", q, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Apply implements persist.Applier.
func (c *Client) Apply(ctx context.Context, ops []record.Operation) ([]record.Ref, error) {
	var resp ApplyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/records", ApplyRequest{Operations: ops}, &resp); err != nil {
		return nil, err
	}
	return resp.Refs, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, ref record.Ref) (*record.Row, error) {
	var row record.Row
	path := "/v1/records/" + url.PathEscape(ref.InfoArea) + "/" + url.PathEscape(ref.RecordID)
	if err := c.do(ctx, http.MethodGet, path, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := strings.TrimPrefix(path, "/v1/")
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &query.ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return &query.ConnectivityError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
			eb = errorBody{Code: http.StatusText(resp.StatusCode), Error: "unexpected response"}
		}
		return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
