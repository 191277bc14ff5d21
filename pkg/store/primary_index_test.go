package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryIndex_InsertLookupRemove(t *testing.T) {
	idx := NewPrimaryIndex(8)
	e := NewInt64Entry([]byte("k1"), 100, 1)

	idx.Insert(e)
	assert.Equal(t, 1, idx.Size())

	got := idx.Lookup([]byte("k1"), 100)
	assert.Same(t, e, got)

	idx.Remove(e)
	assert.Equal(t, 0, idx.Size())
	assert.Nil(t, idx.Lookup([]byte("k1"), 100))
}

func TestPrimaryIndex_LookupMissResolvesHashCollision(t *testing.T) {
	idx := NewPrimaryIndex(8)
	// Two distinct keys sharing a fingerprint must still resolve correctly
	// by full byte comparison within the bucket chain.
	e1 := NewInt64Entry([]byte("a"), 42, 1)
	e2 := NewInt64Entry([]byte("b"), 42, 2)
	idx.Insert(e1)
	idx.Insert(e2)

	assert.Same(t, e1, idx.Lookup([]byte("a"), 42))
	assert.Same(t, e2, idx.Lookup([]byte("b"), 42))
	assert.Nil(t, idx.Lookup([]byte("c"), 42))
}

func TestPrimaryIndex_InitialBucketsRoundUpToPowerOfTwo(t *testing.T) {
	idx := NewPrimaryIndex(10)
	assert.Equal(t, 16, idx.BucketCount())

	idx = NewPrimaryIndex(0)
	assert.Equal(t, DefaultInitialBuckets, idx.BucketCount())
}

func TestPrimaryIndex_MaybeRehashDoublesPastLoadFactor(t *testing.T) {
	idx := NewPrimaryIndex(4)
	// LoadFactor is 0.75, so the third insert over a 4-bucket table reaches
	// the threshold (4 * 0.75 == 3) and doubles it; the fourth stays below the
	// new threshold (8 * 0.75 == 6).
	for i := range 4 {
		e := NewInt64Entry([]byte{byte(i)}, uint64(i), int64(i))
		idx.Insert(e)
		idx.MaybeRehash()
	}

	assert.Equal(t, 8, idx.BucketCount(), "crossing the load factor should double the bucket count")
	assert.Equal(t, 4, idx.Size(), "rehashing must preserve every entry")

	for i := range 4 {
		got := idx.Lookup([]byte{byte(i)}, uint64(i))
		assert.NotNil(t, got)
		assert.Equal(t, int64(i), got.i64)
	}
}

func TestPrimaryIndex_All(t *testing.T) {
	idx := NewPrimaryIndex(8)
	idx.Insert(NewInt64Entry([]byte("a"), 1, 1))
	idx.Insert(NewInt64Entry([]byte("b"), 2, 2))
	idx.Insert(NewInt64Entry([]byte("c"), 3, 3))

	var keys []string
	idx.All(func(e *Entry) bool {
		keys = append(keys, string(e.key))
		return true
	})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}

func TestPrimaryIndex_AllStopsOnFalse(t *testing.T) {
	idx := NewPrimaryIndex(8)
	idx.Insert(NewInt64Entry([]byte("a"), 1, 1))
	idx.Insert(NewInt64Entry([]byte("b"), 2, 2))

	count := 0
	idx.All(func(e *Entry) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count, "returning false from yield must stop iteration immediately")
}
