package statuspage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

// Fetcher is the subset of provider operations the proxy layer consumes. The caching
// layer wraps a Fetcher, and tests substitute one to count upstream calls.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, opts map[string]string) (json.RawMessage, error)
	Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error)
	FetchFeed(ctx context.Context, path string) ([]byte, error)
}

type APIClient struct {
	HTTPClient *http.Client

	// Host is the authenticated API origin, eg "https://api.statushost.example".
	Host string

	// PublicHost is the page's public origin, used for unauthenticated feed reads.
	PublicHost string

	// PageID identifies the status page within the provider account.
	PageID string

	// APIKey is sent as a bearer token on every authenticated request. Empty means the
	// deployment is not configured; calls fail with ErrAPIKeyMissing without any I/O.
	APIKey string

	// Limiter, when set, bounds the request rate against the provider.
	Limiter *rate.Limiter

	UserAgent *string
}

var _ Fetcher = (*APIClient)(nil)

// High-level helper for simple JSON reads (lists and by-ID lookups).
func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts map[string]string) (json.RawMessage, error) {
	params := url.Values{}
	for k, v := range opts {
		params.Set(k, v)
	}
	req := apiRequest{
		Method:      http.MethodGet,
		Endpoint:    endpoint,
		QueryParams: params,
		Headers: http.Header{
			"Accept": []string{"application/json"},
		},
	}
	resp, err := c.do(ctx, &req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := errorFromResponse(resp); err != nil {
		return nil, err
	}

	var ret json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("expected JSON response body: %w", err)
	}
	return ret, nil
}

// High-level helper for JSON-to-JSON procedure calls (subscriber creation).
func (c *APIClient) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req := apiRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     bytes.NewReader(bodyJSON),
		Headers: http.Header{
			"Accept":       []string{"application/json"},
			"Content-Type": []string{"application/json"},
		},
	}
	resp, err := c.do(ctx, &req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := errorFromResponse(resp); err != nil {
		return nil, err
	}

	var ret json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, fmt.Errorf("expected JSON response body: %w", err)
	}
	return ret, nil
}

// FetchFeed reads a public feed path (eg "feed.rss") from the page's public origin.
// No authentication is required or sent; the raw body bytes are returned unmodified.
func (c *APIClient) FetchFeed(ctx context.Context, path string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.PublicHost)
	if err != nil {
		return nil, err
	}
	u.Path = "/" + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", c.userAgent())

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (c *APIClient) do(ctx context.Context, req *apiRequest) (*http.Response, error) {
	if c.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := req.HTTPRequest(ctx, c.Host, c.PageID, http.Header{
		"Authorization": []string{"Bearer " + c.APIKey},
		"User-Agent":    []string{c.userAgent()},
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	return resp, nil
}

func (c *APIClient) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

func (c *APIClient) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *APIClient) userAgent() string {
	if c.UserAgent != nil {
		return *c.UserAgent
	}
	return "statusproxy/" + versioninfo.Short()
}

// errorFromResponse decodes the provider's error envelope for non-2xx responses,
// falling back to a bare APIError when the body is not the expected shape.
func errorFromResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var eb ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return eb.APIError(resp.StatusCode)
}
