package store

import "github.com/kelvindb/kelvin/pkg/cache"

// DefaultTickNanos is the default bucket granularity for the expiration
// index, mirroring the tick interval a clock-based reaper uses to
// batch-clear entries one time bucket at a time instead of scanning the
// whole keyspace.
const DefaultTickNanos = int64(100 * 1_000_000) // 100ms

// ExpiryIndex is a timer-bucketed set over the subset of live entries whose
// expiry is finite. Entries are grouped by deadline rounded down to the
// nearest tick so that Expire can discard whole stale buckets cheaply,
// the same bucketing strategy pkg/cache's HyperClock reaper uses for TTL
// expiration, repurposed here from a background goroutine to a
// facade-driven sweep.
type ExpiryIndex struct {
	tickNanos int64
	buckets   map[int64]*cache.LinkedList[*Entry]
	size      int
}

// NewExpiryIndex constructs an empty ExpiryIndex with the given bucket
// granularity.
func NewExpiryIndex(tickNanos int64) *ExpiryIndex {
	if tickNanos <= 0 {
		tickNanos = DefaultTickNanos
	}
	return &ExpiryIndex{tickNanos: tickNanos, buckets: make(map[int64]*cache.LinkedList[*Entry])}
}

func (ix *ExpiryIndex) bucketKey(deadline int64) int64 {
	return (deadline / ix.tickNanos) * ix.tickNanos
}

// Size returns the number of entries currently tracked.
func (ix *ExpiryIndex) Size() int { return ix.size }

// NextTimeout returns the earliest deadline still pending, or Never if the
// index is empty.
func (ix *ExpiryIndex) NextTimeout() int64 {
	earliest := int64(Never)
	for bucket := range ix.buckets {
		if bucket < earliest {
			earliest = bucket
		}
	}
	if earliest == Never {
		return Never
	}
	// The bucket key only approximates the deadline (rounded down); scan the
	// earliest bucket's members for the true minimum.
	min := int64(Never)
	for node := ix.buckets[earliest].Front(); node != nil; node = node.Next() {
		if node.Value.expiry < min {
			min = node.Value.expiry
		}
	}
	return min
}

// Insert adds e to the expiration index, keyed by its current e.expiry.
// e must not already be a member (e.expiryLink == nil); re-keying an
// existing member requires Remove then Insert. Returns true if this
// insertion lowered NextTimeout(), meaning the caller must re-arm the timer.
func (ix *ExpiryIndex) Insert(e *Entry) bool {
	prevEarliest := ix.NextTimeout()
	bucket := ix.bucketKey(e.expiry)
	list, ok := ix.buckets[bucket]
	if !ok {
		list = new(cache.LinkedList[*Entry])
		ix.buckets[bucket] = list
	}
	e.expiryLink = list.PushBack(e)
	ix.size++
	return ix.NextTimeout() < prevEarliest
}

// Remove unlinks e from the expiration index if it is a member; a no-op
// otherwise.
func (ix *ExpiryIndex) Remove(e *Entry) {
	if e.expiryLink == nil {
		return
	}
	bucket := ix.bucketKey(e.expiry)
	if list, ok := ix.buckets[bucket]; ok {
		list.Remove(e.expiryLink)
		if list.Len() == 0 {
			delete(ix.buckets, bucket)
		}
	}
	e.expiryLink = nil
	ix.size--
}

// Expire drains and returns every entry whose deadline is <= now. Entries
// are removed from the expiration index (expiryLink cleared) but remain
// members of the primary index; Store.Sweep is responsible for erasing
// them from there.
func (ix *ExpiryIndex) Expire(now int64) []*Entry {
	var expired []*Entry
	for bucket, list := range ix.buckets {
		if bucket > now {
			continue // Every deadline in this bucket is still in the future.
		}
		for node := list.Front(); node != nil; {
			next := node.Next()
			e := node.Value
			if e.expiry <= now {
				list.Remove(node)
				e.expiryLink = nil
				ix.size--
				expired = append(expired, e)
			}
			node = next
		}
		if list.Len() == 0 {
			delete(ix.buckets, bucket)
		}
	}
	return expired
}
