// Package inspire is a client for the INSPIRE-HEP literature API.
package inspire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

const (
	// BaseURL is the INSPIRE-HEP API base URL.
	BaseURL = "https://inspirehep.net"

	// DefaultTimeout is the default HTTP request timeout. A hung lookup is
	// reported as a per-identifier service error, not a fatal failure.
	DefaultTimeout = 30 * time.Second

	// RateLimit is 5 requests per second, well under INSPIRE's documented
	// 15-per-5-seconds limit.
	RateLimit = 5.0

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 1 << 20
)

// Client is a rate-limited HTTP client for the INSPIRE literature API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a new INSPIRE API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Resolve looks up a bibliographic record for a normalized identifier.
// Returns ErrNotFound when INSPIRE has no record for it.
func (c *Client) Resolve(ctx context.Context, id cite.Identifier) (*record.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data, err := c.fetchBibTeX(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, err := ParseBibTeX(data)
	if err != nil {
		return nil, err
	}

	// The identifier that produced the record is always one of its
	// alternates, even if the response omitted the matching field.
	rec.SetAltID(id.Type, id.Normalized)
	return rec, nil
}

// lookupURL builds the API URL for an identifier. Texkeys go through the
// literature search endpoint; arXiv numbers and DOIs have direct endpoints.
func (c *Client) lookupURL(id cite.Identifier) string {
	switch id.Type {
	case cite.TypeTexKey:
		q := url.QueryEscape("texkey:" + id.Normalized)
		return fmt.Sprintf("%s/api/literature?q=%s&format=bibtex", c.baseURL, q)
	case cite.TypeDOI:
		return fmt.Sprintf("%s/api/doi/%s?format=bibtex", c.baseURL, id.Normalized)
	default:
		return fmt.Sprintf("%s/api/arxiv/%s?format=bibtex", c.baseURL, id.Normalized)
	}
}

func (c *Client) fetchBibTeX(ctx context.Context, id cite.Identifier) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(id), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/x-bibtex")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, id.Normalized); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrNetworkError, err)
	}

	// The texkey search endpoint returns an empty body for no matches
	// rather than a 404.
	if len(body) == 0 || !containsEntry(body) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id.Raw)
	}

	return string(body), nil
}

func checkStatus(resp *http.Response, identifier string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, identifier)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{StatusCode: resp.StatusCode, Identifier: identifier}
	}
	return nil
}

func containsEntry(body []byte) bool {
	for _, b := range body {
		if b == '@' {
			return true
		}
	}
	return false
}
