package statuscache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nimbushost/statusproxy/statuspage"
)

// CachedClient is the read-through cache over a provider client. Reads consult the
// Store first; a miss or stale entry triggers a single upstream fetch whose result
// overwrites the entry. Failed fetches are never written to the store, and a stale
// entry left behind by a failed refresh is never served.
//
// Writes (Post) pass straight through to the inner client, uncached.
type CachedClient struct {
	Inner statuspage.Fetcher
	Store Store

	// TTL is the single freshness bound for every cached read.
	TTL time.Duration

	flights singleflight.Group
}

var _ statuspage.Fetcher = (*CachedClient)(nil)

func NewCachedClient(inner statuspage.Fetcher, store Store, ttl time.Duration) *CachedClient {
	return &CachedClient{
		Inner: inner,
		Store: store,
		TTL:   ttl,
	}
}

func (c *CachedClient) Fetch(ctx context.Context, endpoint string, opts map[string]string) (json.RawMessage, error) {
	key := Key(endpoint, opts)
	return c.readThrough(ctx, key, func() (json.RawMessage, error) {
		return c.Inner.Fetch(ctx, endpoint, opts)
	})
}

func (c *CachedClient) FetchFeed(ctx context.Context, path string) ([]byte, error) {
	payload, err := c.readThrough(ctx, FeedKey(path), func() (json.RawMessage, error) {
		b, err := c.Inner.FetchFeed(ctx, path)
		return json.RawMessage(b), err
	})
	return []byte(payload), err
}

// Post is never cached; every call reaches the provider.
func (c *CachedClient) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Inner.Post(ctx, endpoint, body)
}

func (c *CachedClient) readThrough(ctx context.Context, key string, fetch func() (json.RawMessage, error)) (json.RawMessage, error) {
	if entry, ok := c.Store.Get(ctx, key); ok && entry.Fresh(c.TTL) {
		cacheHits.Inc()
		return entry.Payload, nil
	}
	cacheMisses.Inc()

	// Collapse concurrent misses for the same key in to one upstream fetch. Late
	// arrivals share the first flight's result (or its error).
	payload, err, shared := c.flights.Do(key, func() (any, error) {
		payload, err := fetch()
		if err != nil {
			upstreamErrors.Inc()
			return nil, err
		}
		c.Store.Put(ctx, key, payload)
		return payload, nil
	})
	if shared {
		requestsCoalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	return payload.(json.RawMessage), nil
}
