package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *FakeClock, *ManualTimer) {
	clock := NewFakeClock(0)
	timer := NewManualTimer()
	s := NewStore(clock, timer, GoAllocator{})
	s.RegisterReleaser(func(*Entry) {})
	return s, clock, timer
}

func TestStore_ReplaceAndGet(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")

	wasAbsent := s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 10))
	assert.True(t, wasAbsent)

	var got int64
	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		var err error
		got, err = v.ValueInt64()
		assert.NoError(t, err)
	})
	assert.Equal(t, int64(10), got)

	wasAbsent = s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 20))
	assert.False(t, wasAbsent, "replacing an existing key reports not-absent")
	assert.Equal(t, 1, s.Size(), "replace must not leave the prior entry behind")
}

func TestStore_IncrRoundTrip(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("counter"), keyHashForTest(t, "counter")
	s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 5))

	var after int64
	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		var err error
		after, err = v.IncrInt64(3)
		assert.NoError(t, err)
	})
	assert.Equal(t, int64(8), after)

	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		got, err := v.ValueInt64()
		assert.NoError(t, err)
		assert.Equal(t, int64(8), got, "mutation through View must be visible on the next Get")
	})
}

func TestStore_InsertIfPredicateTable(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")

	t.Run("plain insert on absent key applies", func(t *testing.T) {
		applied, err := s.InsertIf(NewInt64Entry(append([]byte(nil), key...), hash, 1), 0, false, false)
		assert.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("nx on present key is rejected", func(t *testing.T) {
		applied, err := s.InsertIf(NewInt64Entry(append([]byte(nil), key...), hash, 2), 0, true, false)
		assert.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("xx on present key applies", func(t *testing.T) {
		applied, err := s.InsertIf(NewInt64Entry(append([]byte(nil), key...), hash, 3), 0, false, true)
		assert.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("nx and xx together is rejected with an error", func(t *testing.T) {
		_, err := s.InsertIf(NewInt64Entry(append([]byte(nil), key...), hash, 4), 0, true, true)
		assert.ErrorIs(t, err, InvalidPredicate)
	})

	absentKey, absentHash := []byte("absent"), keyHashForTest(t, "absent")
	t.Run("xx on absent key is rejected", func(t *testing.T) {
		applied, err := s.InsertIf(NewInt64Entry(append([]byte(nil), absentKey...), absentHash, 1), 0, false, true)
		assert.NoError(t, err)
		assert.False(t, applied)
		assert.False(t, s.Exists(absentKey, absentHash))
	})

	t.Run("nx on absent key applies", func(t *testing.T) {
		applied, err := s.InsertIf(NewInt64Entry(append([]byte(nil), absentKey...), absentHash, 1), 0, true, false)
		assert.NoError(t, err)
		assert.True(t, applied)
	})
}

func TestStore_WrongKindOnMismatchedAccessor(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 1))

	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		_, err := v.ValueBlob()
		assert.ErrorIs(t, err, WrongKind)
	})
}

func TestStore_ExpireThenPersist(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 1))

	ok := s.Expire(key, hash, 1000)
	assert.True(t, ok)
	assert.Greater(t, s.TTLMillis(key, hash), int64(-1))

	ok = s.Persist(key, hash)
	assert.True(t, ok)
	assert.Equal(t, int64(-1), s.TTLMillis(key, hash), "persisted key has no expiration")

	ok = s.Persist(key, hash)
	assert.False(t, ok, "persisting an already-persistent key reports false")
}

func TestStore_SweepRemovesFromPrimaryIndexAndCallsReleaser(t *testing.T) {
	s, clock, timer := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")

	var released []string
	s.RegisterReleaser(func(e *Entry) { released = append(released, string(e.Key())) })

	s.InsertIf(NewInt64Entry(append([]byte(nil), key...), hash, 1), 100 /*ttlMs*/, false, false)
	assert.True(t, timer.Armed())
	assert.True(t, s.Exists(key, hash))

	clock.Advance(200 * 1_000_000 /*ns, well past the 100ms ttl*/)
	err := s.Sweep()
	assert.NoError(t, err)

	assert.False(t, s.Exists(key, hash), "Sweep must unlink expired entries from the primary index")
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, []string{"k"}, released, "the releaser is invoked once per expired entry")
}

func TestStore_SweepWithoutReleaserIsAnError(t *testing.T) {
	clock := NewFakeClock(0)
	timer := NewManualTimer()
	s := NewStore(clock, timer, GoAllocator{})

	err := s.Sweep()
	assert.ErrorIs(t, err, MissingReleaser)
}

func TestStore_FlushAll(t *testing.T) {
	s, _, _ := newTestStore()
	s.Replace(NewInt64Entry([]byte("a"), 1, 1))
	s.Replace(NewInt64Entry([]byte("b"), 2, 2))
	require.Equal(t, 2, s.Size())

	s.FlushAll()
	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
}

func TestStore_EraseReportsPresence(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	s.Replace(NewInt64Entry(append([]byte(nil), key...), hash, 1))

	assert.True(t, s.Erase(key, hash))
	assert.False(t, s.Erase(key, hash), "erasing an absent key reports false")
}

// keyHashForTest stands in for the command layer's xxhash fingerprinting:
// the facade never computes hashes itself, so tests just need a stable,
// collision-free mapping from test key strings to a uint64.
func keyHashForTest(t *testing.T, key string) uint64 {
	t.Helper()
	var h uint64 = 14695981039346656037
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211
	}
	return h
}
