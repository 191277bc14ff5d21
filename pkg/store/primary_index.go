package store

import (
	"bytes"

	"github.com/kelvindb/kelvin/pkg/cache"
)

// DefaultInitialBuckets is the primary index's starting bucket count. It must
// stay a power of two; the index only ever doubles.
const DefaultInitialBuckets = 1 << 20

// LoadFactor is the occupancy threshold (size / bucketCount) that triggers a
// synchronous doubling rehash after an insertion.
const LoadFactor = 0.75

// PrimaryIndex is the store's chained hash index: every live Entry is
// reachable from exactly one bucket, linked via its primaryLink node. Lookup
// needs both the precomputed fingerprint (to pick a bucket and short-circuit
// unequal entries cheaply) and the full key bytes (to resolve collisions).
type PrimaryIndex struct {
	buckets []*cache.LinkedList[*Entry]
	size    int
}

// NewPrimaryIndex constructs a PrimaryIndex with initialBuckets buckets,
// rounded up to the next power of two if it isn't already one.
func NewPrimaryIndex(initialBuckets int) *PrimaryIndex {
	if initialBuckets <= 0 {
		initialBuckets = DefaultInitialBuckets
	}
	initialBuckets = nextPowerOfTwo(initialBuckets)
	idx := &PrimaryIndex{buckets: make([]*cache.LinkedList[*Entry], initialBuckets)}
	for i := range idx.buckets {
		idx.buckets[i] = new(cache.LinkedList[*Entry])
	}
	return idx
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BucketCount returns the current number of buckets.
func (idx *PrimaryIndex) BucketCount() int { return len(idx.buckets) }

// Size returns the number of entries currently indexed.
func (idx *PrimaryIndex) Size() int { return idx.size }

func (idx *PrimaryIndex) bucketFor(keyHash uint64) *cache.LinkedList[*Entry] {
	return idx.buckets[keyHash&uint64(len(idx.buckets)-1)]
}

// Lookup returns the entry matching (key, keyHash), or nil if absent.
// Resolution requires both fingerprint equality (implicit via bucket
// selection) and full byte equality, since two distinct keys may share a
// fingerprint.
func (idx *PrimaryIndex) Lookup(key []byte, keyHash uint64) *Entry {
	bucket := idx.bucketFor(keyHash)
	for node := bucket.Front(); node != nil; node = node.Next() {
		if node.Value.keyHash == keyHash && bytes.Equal(node.Value.key, key) {
			return node.Value
		}
	}
	return nil
}

// Insert links e into its bucket unconditionally. The caller (the facade)
// is responsible for having removed any prior entry with the same key;
// Insert itself never checks for duplicates.
func (idx *PrimaryIndex) Insert(e *Entry) {
	bucket := idx.bucketFor(e.keyHash)
	e.primaryLink = bucket.PushFront(e)
	idx.size++
}

// Remove unlinks e from its bucket and decrements size. e.primaryLink must
// be non-nil (e must currently be a member).
func (idx *PrimaryIndex) Remove(e *Entry) {
	bucket := idx.bucketFor(e.keyHash)
	bucket.Remove(e.primaryLink)
	e.primaryLink = nil
	idx.size--
}

// MaybeRehash doubles the bucket count and redistributes every entry if the
// current occupancy has crossed LoadFactor. It is a single synchronous pass,
// not amortized across calls; it never shrinks, and it never fails (Go's
// allocator either produces the larger table or panics on true OOM, so there
// is no partial-rehash state to recover from, unlike an allocator that can
// report failure and leave the store at its old capacity).
func (idx *PrimaryIndex) MaybeRehash() {
	if float64(idx.size) < LoadFactor*float64(len(idx.buckets)) {
		return
	}
	newBuckets := make([]*cache.LinkedList[*Entry], len(idx.buckets)*2)
	for i := range newBuckets {
		newBuckets[i] = new(cache.LinkedList[*Entry])
	}
	mask := uint64(len(newBuckets) - 1)
	for _, bucket := range idx.buckets {
		for node := bucket.Front(); node != nil; {
			next := node.Next()
			e := node.Value
			newBucket := newBuckets[e.keyHash&mask]
			e.primaryLink = newBucket.PushFront(e)
			node = next
		}
	}
	idx.buckets = newBuckets
}

// All iterates every live entry in the primary index, bucket order then
// chain order. Used by KEYS/SCAN and FLUSHALL.
func (idx *PrimaryIndex) All(yield func(*Entry) bool) {
	for _, bucket := range idx.buckets {
		for node := bucket.Front(); node != nil; node = node.Next() {
			if !yield(node.Value) {
				return
			}
		}
	}
}
