package store

import "github.com/bits-and-blooms/bloom/v3"

// Digest is an optional "maybe contains this key" summary of the whole
// keyspace; Rebuild repopulates it from scratch when a caller invokes it. It lets a caller cheaply rule out a
// negative EXISTS/GET before touching the primary index at all — useful
// when many lookups target keys that are known to usually be absent (e.g. a
// cache-aside pattern probing before a slow fallback). A positive from
// Digest is not a guarantee; the primary index lookup is still the source
// of truth. This is a different algorithm from the HLL in hll.go: a Bloom
// filter answers membership over a fixed set with false positives and no
// false negatives, while an HLL estimates distinct counts over a stream —
// they are not substitutable for one another.
type Digest struct {
	filter            *bloom.BloomFilter
	expectedKeys      uint
	falsePositiveRate float64
}

// NewDigest constructs a Digest sized for expectedKeys entries at the given
// false-positive rate.
func NewDigest(expectedKeys uint, falsePositiveRate float64) *Digest {
	return &Digest{
		filter:            bloom.NewWithEstimates(expectedKeys, falsePositiveRate),
		expectedKeys:      expectedKeys,
		falsePositiveRate: falsePositiveRate,
	}
}

// Rebuild repopulates the digest from the given key sequence, discarding
// whatever it held before. Bloom filters don't support deletion, so a
// digest that needs to reflect erased keys must be rebuilt rather than
// updated incrementally.
func (d *Digest) Rebuild(keys func(yield func([]byte) bool)) {
	rebuilt := bloom.NewWithEstimates(d.expectedKeys, d.falsePositiveRate)
	keys(func(key []byte) bool {
		rebuilt.Add(key)
		return true
	})
	d.filter = rebuilt
}

// MaybeContains reports whether key might be present. false is a hard
// guarantee of absence; true means "check the primary index".
func (d *Digest) MaybeContains(key []byte) bool {
	return d.filter.Test(key)
}

// Observe records a single newly-inserted key without a full rebuild. This
// can only grow the digest's positive set; it must not be used as a
// substitute for Rebuild after erasures, since bloom.BloomFilter cannot
// un-observe a key.
func (d *Digest) Observe(key []byte) {
	d.filter.Add(key)
}
