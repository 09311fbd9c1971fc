package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// prefix string for all the Redis keys this cache uses
var redisKeyPrefix string = "status/"

// RedisStore shares the status cache across proxy instances, with an in-process
// TinyLFU front (provided by the redis client library) for hot keys.
//
// Entries carry their own FetchedAt stamp, so freshness semantics are identical to
// MemStore. The Redis-side retention only bounds how long a long-stale snapshot
// lingers; an expired Redis key reads as a miss, which is indistinguishable from a
// stale entry to callers (neither is ever served).
type RedisStore struct {
	entries   *cache.Cache
	rdb       *redis.Client
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to `redisURL` (all connection options live in the URL) and
// verifies the connection before returning. `retention` is how long Redis keeps an
// entry; it should be much larger than the serving TTL. `localSize` is the in-process
// cache capacity; 10000 is a reasonable default.
func NewRedisStore(redisURL string, retention time.Duration, localSize int) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("could not configure redis status cache: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, fmt.Errorf("could not connect to redis status cache: %w", err)
	}
	entries := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(localSize, retention),
	})
	return &RedisStore{
		entries:   entries,
		rdb:       rdb,
		retention: retention,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool) {
	var e Entry
	if err := s.entries.Get(ctx, redisKeyPrefix+key, &e); err != nil {
		if err != cache.ErrCacheMiss {
			slog.Error("status cache read failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	return e, true
}

func (s *RedisStore) Put(ctx context.Context, key string, payload json.RawMessage) {
	err := s.entries.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKeyPrefix + key,
		Value: Entry{Payload: payload, FetchedAt: time.Now()},
		TTL:   s.retention,
	})
	if err != nil {
		slog.Error("status cache write failed", "key", key, "err", err)
	}
}

func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.entries.Delete(ctx, iter.Val()); err != nil {
			slog.Error("status cache delete failed", "key", iter.Val(), "err", err)
		}
	}
	if err := iter.Err(); err != nil {
		slog.Error("status cache scan failed", "err", err)
	}
}
