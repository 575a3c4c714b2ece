package marketdata

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"nepse_dashboard/models"
)

// DefaultBaseURL is the public NEPSE quote endpoint
const DefaultBaseURL = "https://nepsetty.kokomo.workers.dev/api"

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=marketdata_test -destination=mock_http_client_test.go -source=client.go
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches single-symbol quotes from the upstream quote API.
type Client struct {
	// baseURL is the endpoint the symbol query parameter is appended to.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// userAgent is sent with every request when not empty.
	userAgent string
	// timeout bounds every Fetch, regardless of the caller's context.
	timeout time.Duration
}

// Option is a configuration option for the Client.
type Option func(*Client)

// WithBaseURL sets the upstream endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewHTTPClient returns an *http.Client with an explicit overall timeout and
// bounded dial/handshake/header phases.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// NewClient creates a quote client. timeout must be positive: an upstream
// call is never allowed to block a fetch cycle indefinitely.
func NewClient(timeout time.Duration, options ...Option) (*Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("marketdata: timeout must be positive, got %v", timeout)
	}
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: "nepse-dashboard/1.0",
		timeout:   timeout,
	}
	for _, option := range options {
		option(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(timeout)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, errors.Wrapf(err, "marketdata: invalid base url %q", c.baseURL)
	}
	return c, nil
}

// Fetch performs one GET for symbol and parses the quote. Any network
// failure, non-2xx response or malformed body is returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, symbol string) (models.RawQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := c.endpoint(symbol)
	if err != nil {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpRequest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpRequest, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpRequest, Err: errors.Wrap(err, "get quote")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpRead, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read body")}
	}
	if len(body) > maxBodyBytes {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpRead, StatusCode: resp.StatusCode, Err: errors.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.RawQuote{}, &FetchError{
			Symbol:     symbol,
			Op:         OpStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("unexpected status %d: %s", resp.StatusCode, preview(body)),
		}
	}

	quote, err := ParseQuote(body)
	if err != nil {
		return models.RawQuote{}, &FetchError{Symbol: symbol, Op: OpDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return quote, nil
}

func (c *Client) endpoint(symbol string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	q := u.Query()
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func preview(body []byte) string {
	const n = 200
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
