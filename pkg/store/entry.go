package store

import (
	"github.com/kelvindb/kelvin/pkg/cache"
	"github.com/kelvindb/kelvin/pkg/container"
)

// Entry is a single keyed record owned by the store: a key, a discriminated
// payload, an expiration deadline, and the two linkage slots used by the
// primary index and the expiration index. An Entry is an ordinary Go heap
// allocation (not obtained from an Allocator) referenced by pointer; it is
// never copied by value once constructed.
type Entry struct {
	key     []byte
	keyHash uint64 // Immutable fingerprint, precomputed once at construction.
	kind    Kind   // Immutable for the entry's lifetime.

	// Exactly one of the following is active, selected by kind. The others
	// are zero/nil and must never be observed.
	i64  int64
	f64  float64
	blob *container.Blob        // Bytes, HLL
	list *container.List        // List
	dict *container.Dict[[]byte] // Hash, Set (members stored with an empty value)
	zset *container.SortedSet   // SortedSet

	expiry int64 // Never means "does not expire".

	// primaryLink is the node owning this entry within its primary-index
	// bucket chain. Owned exclusively by PrimaryIndex.
	primaryLink *cache.LinkedListNode[*Entry]
	// expiryLink is the node owning this entry within its expiration-index
	// deadline bucket. Owned exclusively by ExpiryIndex; nil whenever
	// expiry == Never.
	expiryLink *cache.LinkedListNode[*Entry]
}

// Key returns the entry's key bytes. Callers must not mutate the returned
// slice.
func (e *Entry) Key() []byte { return e.key }

// KeyHash returns the entry's precomputed fingerprint.
func (e *Entry) KeyHash() uint64 { return e.keyHash }

// KindOf returns the entry's discriminant.
func (e *Entry) KindOf() Kind { return e.kind }

// Expiry returns the entry's current deadline, or Never.
func (e *Entry) Expiry() int64 { return e.expiry }

// NewFloatEntry constructs a Float entry with the given initial value.
func NewFloatEntry(key []byte, keyHash uint64, value float64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Float, f64: value, expiry: Never}
}

// NewInt64Entry constructs an Int64 entry with the given initial value.
func NewInt64Entry(key []byte, keyHash uint64, value int64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Int64, i64: value, expiry: Never}
}

// NewBytesEntry constructs a Bytes entry. The blob takes ownership of value.
func NewBytesEntry(key []byte, keyHash uint64, value []byte) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Bytes, blob: container.NewBlob(value), expiry: Never}
}

// NewEmptyBytesEntry constructs a Bytes entry holding `length` zeroed bytes.
func NewEmptyBytesEntry(key []byte, keyHash uint64, length int) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Bytes, blob: container.NewBlob(make([]byte, length)), expiry: Never}
}

// NewHLLEntry constructs an HLL entry: a fixed HLLBytesSize zero-filled
// dense register buffer.
func NewHLLEntry(key []byte, keyHash uint64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: HLL, blob: container.NewBlob(make([]byte, HLLBytesSize)), expiry: Never}
}

// NewListEntry constructs an empty List entry.
func NewListEntry(key []byte, keyHash uint64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: List, list: container.NewList(), expiry: Never}
}

// NewHashEntry constructs an empty Hash entry.
func NewHashEntry(key []byte, keyHash uint64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Hash, dict: container.NewDict[[]byte](), expiry: Never}
}

// NewSetEntry constructs an empty Set entry.
func NewSetEntry(key []byte, keyHash uint64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: Set, dict: container.NewDict[[]byte](), expiry: Never}
}

// NewSortedSetEntry constructs an empty SortedSet entry.
func NewSortedSetEntry(key []byte, keyHash uint64) *Entry {
	return &Entry{key: key, keyHash: keyHash, kind: SortedSet, zset: container.NewSortedSet(), expiry: Never}
}

// ValueFloat returns the Float payload, or WrongKind if the entry is not a
// Float.
func (e *Entry) ValueFloat() (float64, error) {
	if e.kind != Float {
		return 0, WrongKind
	}
	return e.f64, nil
}

// ValueInt64 returns the Int64 payload, or WrongKind if the entry is not an
// Int64.
func (e *Entry) ValueInt64() (int64, error) {
	if e.kind != Int64 {
		return 0, WrongKind
	}
	return e.i64, nil
}

// ValueBlob returns the Bytes/HLL payload, or WrongKind otherwise.
func (e *Entry) ValueBlob() (*container.Blob, error) {
	if e.kind != Bytes && e.kind != HLL {
		return nil, WrongKind
	}
	return e.blob, nil
}

// ValueList returns the List payload, or WrongKind otherwise.
func (e *Entry) ValueList() (*container.List, error) {
	if e.kind != List {
		return nil, WrongKind
	}
	return e.list, nil
}

// ValueDict returns the Hash/Set payload, or WrongKind otherwise.
func (e *Entry) ValueDict() (*container.Dict[[]byte], error) {
	if e.kind != Hash && e.kind != Set {
		return nil, WrongKind
	}
	return e.dict, nil
}

// ValueSortedSet returns the SortedSet payload, or WrongKind otherwise.
func (e *Entry) ValueSortedSet() (*container.SortedSet, error) {
	if e.kind != SortedSet {
		return nil, WrongKind
	}
	return e.zset, nil
}

// IncrInt64 adds delta to the Int64 payload in place and returns the new
// value. Overflow wraps around (two's-complement).
func (e *Entry) IncrInt64(delta int64) (int64, error) {
	if e.kind != Int64 {
		return 0, WrongKind
	}
	e.i64 += delta // Go's signed integer overflow is defined wrap-around.
	return e.i64, nil
}

// IncrFloat adds delta to the Float payload in place and returns the new
// value, using IEEE-754 semantics.
func (e *Entry) IncrFloat(delta float64) (float64, error) {
	if e.kind != Float {
		return 0, WrongKind
	}
	e.f64 += delta
	return e.f64, nil
}
