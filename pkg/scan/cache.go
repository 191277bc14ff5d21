// KEYS and SCAN MATCH walk the full primary index on every call. Kelvin
// memoizes recent pattern matches behind a short TTL using pkg/cache's
// CLOCK+TTL cache (HyperClock, sharded via ShardedCache), keyed by glob
// pattern.
package scan

import (
	"context"
	"time"

	"github.com/kelvindb/kelvin/pkg/cache"
)

// PatternCache memoizes the matched keys for recently evaluated glob
// patterns, bounded by both entry count and a TTL so stale matches (keys
// that expired or were deleted since the scan) don't linger too long.
type PatternCache struct {
	layer cache.Layer[string, [][]byte]
	ttl   time.Duration
}

// NewPatternCache constructs a PatternCache sharded cacheShards ways, each
// shard bounded to perShardCapacity entries and tickInterval reaper
// granularity, with matches valid for ttl.
func NewPatternCache(ctx context.Context, cacheShards, perShardCapacity int, ttl, tickInterval time.Duration) *PatternCache {
	if cacheShards <= 0 {
		return &PatternCache{layer: cache.NewNoOp[string, [][]byte](), ttl: ttl}
	}
	generator := func() cache.Layer[string, [][]byte] {
		return cache.NewHyperClock[string, [][]byte](ctx, perShardCapacity, tickInterval, nil)
	}
	return &PatternCache{layer: cache.NewShardedCache(generator, cacheShards), ttl: ttl}
}

// Get returns the cached matches for pattern, if any.
func (p *PatternCache) Get(pattern string) ([][]byte, bool) {
	return p.layer.Get(pattern)
}

// Put stores matches for pattern, valid for the cache's configured TTL.
func (p *PatternCache) Put(pattern string, matches [][]byte) {
	p.layer.Add(pattern, matches, p.ttl)
}

// Invalidate drops every memoized pattern match. Callers should do this
// after a write that could change keyspace membership in a way scans care
// about (e.g. FLUSHALL), since entries are otherwise only evicted by TTL or
// by the per-shard capacity limit.
func (p *PatternCache) Invalidate() {
	p.layer.Purge()
}
