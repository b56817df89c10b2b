package idserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	PathUserIDVData   = "/admin/user-idv-data"
	PathTransferFunds = "/admin/transfer-funds"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout is the overall per-request client timeout; 0 disables it.
	Timeout time.Duration
	// RatePerSec caps outbound calls (burst 2, one tick's worth); 0 disables it.
	RatePerSec float64
	// Transport overrides http.DefaultTransport (tests).
	Transport http.RoundTripper
}

// Client calls the id-server admin endpoints. It is safe for concurrent use,
// though the daemon only ever issues one call at a time.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Response is a received, decoded admin response. A non-200 status is not an
// error at this level; callers branch on StatusCode.
type Response[T any] struct {
	StatusCode int
	Status     string
	Body       T
}

// OK reports whether the server answered exactly 200.
func (r *Response[T]) OK() bool { return r.StatusCode == http.StatusOK }

func New(opt Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opt.BaseURL, "/"),
		http: &http.Client{
			Timeout: opt.Timeout,
			Transport: &apiKeyTransport{
				base:   opt.Transport,
				apiKey: opt.APIKey,
			},
		},
	}
	if opt.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opt.RatePerSec), 2)
	}
	return c
}

// BaseURL returns the id-server base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// DeleteUserIDVData triggers deletion of stale user IDV data.
func (c *Client) DeleteUserIDVData(ctx context.Context) (*Response[DeletionResult], error) {
	return call[DeletionResult](ctx, c, http.MethodDelete, PathUserIDVData)
}

// TransferFunds triggers the transfer of accumulated funds.
func (c *Client) TransferFunds(ctx context.Context) (*Response[TransferResult], error) {
	return call[TransferResult](ctx, c, http.MethodPost, PathTransferFunds)
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}

func call[T any](ctx context.Context, c *Client, method, path string) (*Response[T], error) {
	url := c.baseURL + path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	out := &Response[T]{StatusCode: resp.StatusCode, Status: resp.Status}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	if len(raw) > maxBodyBytes {
		return nil, &DecodeError{
			StatusCode: resp.StatusCode,
			Body:       raw[:maxBodyBytes],
			Err:        fmt.Errorf("%w: body exceeds %d bytes", errBodyTooLarge, maxBodyBytes),
		}
	}
	if err := decode(raw, &out.Body); err != nil {
		return nil, &DecodeError{StatusCode: resp.StatusCode, Body: raw, Err: err}
	}
	return out, nil
}

func decode(raw []byte, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return errNullBody
	}
	return json.Unmarshal(trimmed, v)
}
