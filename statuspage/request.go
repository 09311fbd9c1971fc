package statuspage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// apiRequest is a single provider API call, before conversion to an http.Request.
type apiRequest struct {
	// HTTP method, eg "GET" (required)
	Method string

	// logical provider endpoint, eg "incidents" or "incidents/{id}" (required)
	Endpoint string

	// optional request body. if this is provided, then 'Content-Type' header should be specified
	Body io.Reader

	// optional query parameters. These will be encoded as provided.
	QueryParams url.Values

	// optional HTTP headers. Only the first value will be included for each header key ("Set" behavior).
	Headers http.Header
}

// The provider's URL scheme has two shapes: the three resource types (and their by-ID
// variants) live directly under the page ID, while everything else (status summary,
// subscribers) is nested under a "pages" segment. This split mirrors the provider's
// actual API and must not be "cleaned up".
func endpointPath(pageID, endpoint string) string {
	kind, _, _ := strings.Cut(endpoint, "/")
	switch kind {
	case "components", "incidents", "maintenances":
		return "/v1/" + pageID + "/" + endpoint
	default:
		return "/v1/pages/" + pageID + "/" + endpoint
	}
}

// Turns the API request in to an `http.Request`.
//
// `host` parameter should be a URL prefix: schema, hostname, port.
// `headers` parameters are treated as client-level defaults. Only a single value is
// allowed per key ("Set" behavior), and will be clobbered by any request-level header
// values.
func (r *apiRequest) HTTPRequest(ctx context.Context, host, pageID string, headers http.Header) (*http.Request, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("empty hostname in host URL")
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("empty scheme in host URL")
	}
	if r.Endpoint == "" {
		return nil, fmt.Errorf("empty request endpoint")
	}
	u.Path = endpointPath(pageID, r.Endpoint)
	u.RawQuery = ""
	if r.QueryParams != nil {
		u.RawQuery = r.QueryParams.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		return nil, err
	}

	// first set default headers...
	if headers != nil {
		for k := range headers {
			httpReq.Header.Set(k, headers.Get(k))
		}
	}

	// ... then request-specific take priority (overwrite)
	if r.Headers != nil {
		for k := range r.Headers {
			httpReq.Header.Set(k, r.Headers.Get(k))
		}
	}

	return httpReq, nil
}
