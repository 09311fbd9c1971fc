package statuscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is one cached payload snapshot. Entries are replaced wholesale on refresh,
// never merged, and never exist without a FetchedAt stamp.
type Entry struct {
	Payload   json.RawMessage
	FetchedAt time.Time
}

// Fresh reports whether the entry is younger than ttl.
func (e Entry) Fresh(ttl time.Duration) bool {
	return time.Since(e.FetchedAt) < ttl
}

// Store holds the last known payload per cache key. Implementations must be safe for
// concurrent use; concurrent puts to the same key are last-writer-wins, which is fine
// because payloads for a key are idempotent snapshots of upstream truth.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Put(ctx context.Context, key string, payload json.RawMessage)

	// Clear drops all entries. Teardown hook for tests; not used in serving paths.
	Clear(ctx context.Context)
}

// Key derives the cache key for a logical endpoint and its request options. The
// serialization is deterministic (encoding/json sorts map keys), so identical requests
// always share a key and different endpoints or options never collide.
func Key(endpoint string, opts map[string]string) string {
	if opts == nil {
		opts = map[string]string{}
	}
	b, _ := json.Marshal(opts)
	return endpoint + "-" + string(b)
}

// FeedKey derives the cache key for a public feed path.
func FeedKey(path string) string {
	return "rss-" + path
}

// MemStore is the default in-process store. The key space is small and fixed (one key
// per proxied endpoint, plus feeds), so it holds entries for the process lifetime with
// no eviction; a restart clears it.
type MemStore struct {
	entries *expirable.LRU[string, Entry]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	// zero capacity and zero TTL mean the library never drops entries itself;
	// staleness is the caller's decision via Entry.Fresh.
	return &MemStore{
		entries: expirable.NewLRU[string, Entry](0, nil, 0),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) (Entry, bool) {
	return s.entries.Get(key)
}

func (s *MemStore) Put(ctx context.Context, key string, payload json.RawMessage) {
	s.entries.Add(key, Entry{Payload: payload, FetchedAt: time.Now()})
}

func (s *MemStore) Clear(ctx context.Context) {
	s.entries.Purge()
}
