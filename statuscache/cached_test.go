package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	fetches atomic.Int64
	posts   atomic.Int64
	feeds   atomic.Int64
	err     error
	payload json.RawMessage
	feed    []byte
}

func (f *countingFetcher) Fetch(ctx context.Context, endpoint string, opts map[string]string) (json.RawMessage, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *countingFetcher) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	f.posts.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *countingFetcher) FetchFeed(ctx context.Context, path string) ([]byte, error) {
	f.feeds.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.feed, nil
}

// gatedFetcher blocks every fetch until release is closed, so a test can pile
// up concurrent callers behind one in-flight fetch.
type gatedFetcher struct {
	fetches atomic.Int64
	release chan struct{}
	payload json.RawMessage
	err     error
}

func (f *gatedFetcher) Fetch(ctx context.Context, endpoint string, opts map[string]string) (json.RawMessage, error) {
	f.fetches.Add(1)
	<-f.release
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *gatedFetcher) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return f.payload, nil
}

func (f *gatedFetcher) FetchFeed(ctx context.Context, path string) ([]byte, error) {
	return []byte(f.payload), nil
}

func TestCachedFetchHit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{payload: json.RawMessage(`[{"id":"inc1"}]`)}
	cc := NewCachedClient(inner, NewMemStore(), time.Minute)

	first, err := cc.Fetch(ctx, "incidents", nil)
	require.NoError(err)
	assert.Equal(inner.payload, first)
	assert.Equal(int64(1), inner.fetches.Load())

	// within TTL: served from cache, no second upstream call
	second, err := cc.Fetch(ctx, "incidents", nil)
	require.NoError(err)
	assert.Equal(first, second)
	assert.Equal(int64(1), inner.fetches.Load())
}

func TestCachedFetchExpiry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{payload: json.RawMessage(`"v1"`)}
	store := NewMemStore()
	cc := NewCachedClient(inner, store, 10*time.Millisecond)

	_, err := cc.Fetch(ctx, "incidents", nil)
	require.NoError(err)
	require.Equal(int64(1), inner.fetches.Load())

	time.Sleep(20 * time.Millisecond)
	inner.payload = json.RawMessage(`"v2"`)

	// past TTL: exactly one refetch, entry overwritten
	refreshed, err := cc.Fetch(ctx, "incidents", nil)
	require.NoError(err)
	assert.Equal(json.RawMessage(`"v2"`), refreshed)
	assert.Equal(int64(2), inner.fetches.Load())

	entry, ok := store.Get(ctx, Key("incidents", nil))
	require.True(ok)
	assert.Equal(json.RawMessage(`"v2"`), entry.Payload)
}

func TestCachedFetchConcurrentMissesCollapse(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := &gatedFetcher{release: make(chan struct{}), payload: json.RawMessage(`"v1"`)}
	cc := NewCachedClient(inner, NewMemStore(), time.Minute)

	// all routines launch at the same time, so they should all miss the cache
	// initially and join the single in-flight fetch
	routines := 20
	wg := sync.WaitGroup{}
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := cc.Fetch(ctx, "incidents", nil)
			assert.NoError(err)
			assert.Equal(json.RawMessage(`"v1"`), payload)
		}()
	}

	// give every caller time to reach the flight before letting it complete
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(int64(1), inner.fetches.Load())
}

func TestCachedFetchConcurrentMissesShareError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := &gatedFetcher{release: make(chan struct{}), err: errors.New("upstream down")}
	store := NewMemStore()
	cc := NewCachedClient(inner, store, time.Minute)

	routines := 20
	wg := sync.WaitGroup{}
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cc.Fetch(ctx, "incidents", nil)
			// every waiter gets the flight's error, not a cached nil
			assert.ErrorContains(err, "upstream down")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(int64(1), inner.fetches.Load())
	_, ok := store.Get(ctx, Key("incidents", nil))
	assert.False(ok)
}

func TestCachedFetchFailureNotCached(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{err: errors.New("connection reset")}
	store := NewMemStore()
	cc := NewCachedClient(inner, store, time.Minute)

	_, err := cc.Fetch(ctx, "incidents", nil)
	require.Error(err)
	_, ok := store.Get(ctx, Key("incidents", nil))
	assert.False(ok)

	// errors are not cached: the next read tries upstream again
	_, err = cc.Fetch(ctx, "incidents", nil)
	require.Error(err)
	assert.Equal(int64(2), inner.fetches.Load())
}

func TestCachedFetchStaleNotServedOnFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{payload: json.RawMessage(`"v1"`)}
	store := NewMemStore()
	cc := NewCachedClient(inner, store, 10*time.Millisecond)

	_, err := cc.Fetch(ctx, "incidents", nil)
	require.NoError(err)

	time.Sleep(20 * time.Millisecond)
	inner.err = errors.New("upstream down")

	// refresh fails: the error surfaces, the stale entry stays in place unserved
	_, err = cc.Fetch(ctx, "incidents", nil)
	require.Error(err)

	entry, ok := store.Get(ctx, Key("incidents", nil))
	require.True(ok)
	assert.Equal(json.RawMessage(`"v1"`), entry.Payload)
	assert.False(entry.Fresh(cc.TTL))
}

func TestCachedPostNeverCached(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{payload: json.RawMessage(`{"id":"sub1"}`)}
	cc := NewCachedClient(inner, NewMemStore(), time.Minute)

	body := map[string]any{"delivery": "email", "email": "user@example.com"}
	_, err := cc.Post(ctx, "subscribers", body)
	require.NoError(err)
	_, err = cc.Post(ctx, "subscribers", body)
	require.NoError(err)

	// identical writes each reach the provider
	assert.Equal(int64(2), inner.posts.Load())
}

func TestCachedFetchFeed(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	inner := &countingFetcher{feed: []byte(`<rss version="2.0"></rss>`)}
	cc := NewCachedClient(inner, NewMemStore(), time.Minute)

	first, err := cc.FetchFeed(ctx, "feed.rss")
	require.NoError(err)
	assert.Equal(inner.feed, first)

	_, err = cc.FetchFeed(ctx, "feed.rss")
	require.NoError(err)
	assert.Equal(int64(1), inner.feeds.Load())

	// distinct feed paths have distinct entries
	_, err = cc.FetchFeed(ctx, "maintenances/feed.rss")
	require.NoError(err)
	assert.Equal(int64(2), inner.feeds.Load())
}
