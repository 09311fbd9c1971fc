/*
Read-through caching for status provider reads.

The site renders operational status on several pages, and re-fetching the provider on
every render would hammer its API. [CachedClient] wraps a [statuspage.Fetcher] with a
[Store]: a fresh entry is served verbatim, a miss or stale entry triggers exactly one
upstream fetch (concurrent identical misses are collapsed), and a failed fetch is
never cached.

Two store backends are provided: [MemStore] (in-process, cleared on restart) and
[RedisStore] (shared across instances). Both hold opaque payload snapshots stamped
with their fetch time; staleness is decided by the caller against a single deployment
TTL, so a refresh failure leaves the old entry in place without ever serving it stale.
*/
package statuscache
