/*
Client for the hosted status-page provider API.

[APIClient] wraps an [http.Client] and exposes the small set of provider endpoints the
public site needs: the page status summary, component/incident/maintenance reads (list
and by-ID), subscriber registration, and the public RSS feed. Responses are passed
through as opaque JSON ([json.RawMessage]) without schema validation; the provider owns
those shapes and the site renders them verbatim.

The [APIError] struct represents a non-2xx provider response, including the 'error' and
'message' JSON fields the provider emits. Network-level failures surface as wrapped
errors from the underlying [http.Client]. A missing API key is reported as
[ErrAPIKeyMissing] before any network I/O, so callers can render a configuration error
rather than a generic upstream failure.
*/
package statuspage
