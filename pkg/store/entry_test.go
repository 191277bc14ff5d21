package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntry_IncrInt64RoundTrip(t *testing.T) {
	e := NewInt64Entry([]byte("k"), 1, 10)

	v, err := e.IncrInt64(5)
	assert.NoError(t, err)
	assert.Equal(t, int64(15), v)

	v, err = e.ValueInt64()
	assert.NoError(t, err)
	assert.Equal(t, int64(15), v)
}

func TestEntry_IncrFloatRoundTrip(t *testing.T) {
	e := NewFloatEntry([]byte("k"), 1, 1.5)

	v, err := e.IncrFloat(0.25)
	assert.NoError(t, err)
	assert.Equal(t, 1.75, v)
}

func TestEntry_WrongKind(t *testing.T) {
	e := NewInt64Entry([]byte("k"), 1, 10)

	_, err := e.ValueFloat()
	assert.ErrorIs(t, err, WrongKind)

	_, err = e.ValueBlob()
	assert.ErrorIs(t, err, WrongKind)

	_, err = e.IncrFloat(1)
	assert.ErrorIs(t, err, WrongKind)
}

func TestEntry_BytesAndHLLShareBlobAccessor(t *testing.T) {
	bytesEntry := NewBytesEntry([]byte("k"), 1, []byte("hello"))
	blob, err := bytesEntry.ValueBlob()
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), blob.Bytes())

	hllEntry := NewHLLEntry([]byte("k"), 1)
	blob, err = hllEntry.ValueBlob()
	assert.NoError(t, err)
	assert.Equal(t, HLLBytesSize, blob.Len())
}

func TestEntry_NewEntriesDefaultToNeverExpiring(t *testing.T) {
	for _, e := range []*Entry{
		NewInt64Entry([]byte("k"), 1, 0),
		NewFloatEntry([]byte("k"), 1, 0),
		NewBytesEntry([]byte("k"), 1, nil),
		NewListEntry([]byte("k"), 1),
		NewHashEntry([]byte("k"), 1),
		NewSetEntry([]byte("k"), 1),
		NewSortedSetEntry([]byte("k"), 1),
	} {
		assert.Equal(t, Never, e.Expiry())
	}
}

func TestEntry_IncrInt64OverflowWraps(t *testing.T) {
	e := NewInt64Entry([]byte("k"), 1, math.MaxInt64)
	v, err := e.IncrInt64(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v, "signed overflow wraps two's-complement style")
}
