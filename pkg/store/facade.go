package store

import (
	"github.com/kelvindb/kelvin/pkg/container"
	"github.com/kelvindb/kelvin/pkg/utils"
)

// Store owns a PrimaryIndex and an ExpiryIndex sharing entry identity, a
// Clock and Timer for expiration, and an Allocator for interned key storage.
// Every method here is a plain Go call with no internal synchronization —
// mutual exclusion is the caller's responsibility (route every call through
// a single Loop), not this type's.
type Store struct {
	primary *PrimaryIndex
	expiry  *ExpiryIndex
	clock   Clock
	timer   Timer
	alloc   Allocator

	releaser func(*Entry)

	rehashCount  int64
	sweepCount   int64
	expiredCount int64
}

// NewStore constructs an empty Store. timer may be nil, in which case the
// store tracks expirations but never proactively sweeps; callers in that
// mode must invoke Sweep() themselves (e.g. on a polling schedule).
func NewStore(clock Clock, timer Timer, alloc Allocator) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	if alloc == nil {
		alloc = GoAllocator{}
	}
	s := &Store{
		primary: NewPrimaryIndex(DefaultInitialBuckets),
		expiry:  NewExpiryIndex(DefaultTickNanos),
		clock:   clock,
		timer:   timer,
		alloc:   alloc,
	}
	bucketCountGauge.Set(float64(s.primary.BucketCount()))
	return s
}

// RegisterReleaser installs the expired-entry releaser invoked once per
// entry during Sweep. It must be called before the first Sweep.
func (s *Store) RegisterReleaser(f func(*Entry)) {
	s.releaser = f
}

// internKey copies key into storage owned by the Allocator, since entries
// own their key bytes for their whole lifetime and must never alias the
// caller's buffer.
func (s *Store) internKey(key []byte) []byte {
	buf := s.alloc.Get(len(key))
	copy(buf, key)
	return buf
}

// Exists reports whether key is present. Pure lookup; never fails.
func (s *Store) Exists(key []byte, keyHash uint64) bool {
	return s.primary.Lookup(key, keyHash) != nil
}

// View is a narrow handle over an Entry exposed to facade callers: payload
// access and mutation, and expiry access, but never KeyHash or Kind — those
// are immutable for the entry's lifetime, and View has no method that could
// change them. This is the structural fix for the "with_entry_run exposes a
// mutable handle with no invariant preventing kind/key_hash mutation" design
// note: the type itself has no such method, so there's nothing to misuse.
type View struct {
	entry *Entry
}

// Kind returns the viewed entry's discriminant.
func (v *View) Kind() Kind { return v.entry.kind }

// Expiry returns the viewed entry's current deadline, or Never.
func (v *View) Expiry() int64 { return v.entry.expiry }

func (v *View) ValueFloat() (float64, error)                  { return v.entry.ValueFloat() }
func (v *View) ValueInt64() (int64, error)                    { return v.entry.ValueInt64() }
func (v *View) ValueBlob() (*container.Blob, error)           { return v.entry.ValueBlob() }
func (v *View) ValueList() (*container.List, error)           { return v.entry.ValueList() }
func (v *View) ValueDict() (*container.Dict[[]byte], error)   { return v.entry.ValueDict() }
func (v *View) ValueSortedSet() (*container.SortedSet, error) { return v.entry.ValueSortedSet() }
func (v *View) IncrInt64(delta int64) (int64, error)          { return v.entry.IncrInt64(delta) }
func (v *View) IncrFloat(delta float64) (float64, error)      { return v.entry.IncrFloat(delta) }

// Get looks up key and invokes f with a View of the matching entry, or with
// found=false if absent. f runs synchronously, within the single call to
// Get, while no sweep can interleave — it may freely mutate the entry's
// payload or expiry through the View.
func (s *Store) Get(key []byte, keyHash uint64, f func(v *View, found bool)) {
	e := s.primary.Lookup(key, keyHash)
	if e == nil {
		f(nil, false)
		return
	}
	f(&View{entry: e}, true)
}

// TTLMillis returns the remaining time-to-live of key in milliseconds, per
// Redis' PTTL semantics: -2 if the key is absent, -1 if present with no
// expiration, otherwise the non-negative remaining milliseconds.
func (s *Store) TTLMillis(key []byte, keyHash uint64) int64 {
	e := s.primary.Lookup(key, keyHash)
	if e == nil {
		return -2
	}
	if e.expiry == Never {
		return -1
	}
	remaining := (e.expiry - s.clock.NowNanos()) / 1_000_000
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Erase removes key from both indices and releases the entry. Returns
// whether key was present.
func (s *Store) Erase(key []byte, keyHash uint64) bool {
	e := s.primary.Lookup(key, keyHash)
	if e == nil {
		observeOp("erase", false)
		return false
	}
	s.removeEntry(e)
	observeOp("erase", true)
	return true
}

// removeEntry unlinks e from both indices and returns its key buffer to the
// allocator. It does not re-arm the timer; callers that remove as part of a
// larger operation (e.g. insert_if's prior-entry removal) are expected to
// re-arm once afterward if they also touch the expiration index.
func (s *Store) removeEntry(e *Entry) {
	if e.expiryLink != nil {
		s.expiry.Remove(e)
	}
	s.primary.Remove(e)
	s.alloc.Put(e.key)
}

// link unconditionally inserts e into the primary index. It never checks
// for duplicates; it is the caller's (this package's) responsibility to
// have removed any prior entry with the same key first.
func (s *Store) link(e *Entry) {
	s.primary.Insert(e)
}

// Replace links e into the primary index, first removing any prior entry
// with the same key from both indices. Returns true if the key was
// previously absent, false if a prior entry was overwritten.
func (s *Store) Replace(e *Entry) bool {
	prior := s.primary.Lookup(e.key, e.keyHash)
	wasAbsent := prior == nil
	if prior != nil {
		s.removeEntry(prior)
	}
	s.link(e)
	s.maybeRehash()
	observeOp("replace", true)
	return wasAbsent
}

// InsertIf applies e under the nx/xx conditional-insert predicates.
// ttlMs == 0 means "never expires" for this call; ttlMs > 0 arms an
// expiration ttlMs after now(). Returns whether the insertion happened.
func (s *Store) InsertIf(e *Entry, ttlMs int64, nx, xx bool) (bool, error) {
	if nx && xx {
		return false, InvalidPredicate
	}

	prior := s.primary.Lookup(e.key, e.keyHash)
	present := prior != nil

	var proceed bool
	switch {
	case nx && !xx:
		proceed = !present
	case xx && !nx:
		proceed = present
	default: // nx == false && xx == false
		proceed = true
	}
	if !proceed {
		observeOp("insert_if", false)
		return false, nil
	}

	if present {
		s.removeEntry(prior)
	}
	if ttlMs > 0 {
		e.expiry = s.clock.NowNanos() + ttlMs*1_000_000
	}
	s.link(e)
	if e.expiry != Never {
		if s.expiry.Insert(e) {
			s.rearmTimer()
		}
	}
	s.maybeRehash()
	observeOp("insert_if", true)
	return true, nil
}

// Expire sets key's deadline to now() + ttlMs. ttlMs == 0 is equivalent to
// Persist. Returns whether key was present; for ttlMs == 0 it returns
// Persist's result, which is false for a present key that had no deadline.
func (s *Store) Expire(key []byte, keyHash uint64, ttlMs int64) bool {
	e := s.primary.Lookup(key, keyHash)
	if e == nil {
		observeOp("expire", false)
		return false
	}
	if ttlMs == 0 {
		return s.Persist(key, keyHash)
	}
	if e.expiryLink != nil {
		s.expiry.Remove(e) // Re-key: must remove before inserting under the new deadline.
	}
	e.expiry = s.clock.NowNanos() + ttlMs*1_000_000
	if s.expiry.Insert(e) {
		s.rearmTimer()
	}
	observeOp("expire", true)
	return true
}

// Persist clears key's deadline, removing it from the expiration index.
// Returns whether key was present and had a finite deadline.
func (s *Store) Persist(key []byte, keyHash uint64) bool {
	e := s.primary.Lookup(key, keyHash)
	if e == nil || e.expiry == Never {
		observeOp("persist", false)
		return false
	}
	s.expiry.Remove(e)
	e.expiry = Never
	observeOp("persist", true)
	return true
}

// FlushAll empties both indices, releasing every entry, and disarms the
// timer (indirectly, since the expiration index becomes empty).
func (s *Store) FlushAll() {
	var toRelease []*Entry
	s.primary.All(func(e *Entry) bool {
		toRelease = append(toRelease, e)
		return true
	})
	for _, e := range toRelease {
		if e.expiryLink != nil {
			s.expiry.Remove(e)
		}
		s.primary.Remove(e)
		s.alloc.Put(e.key)
	}
	s.rearmTimer()
	observeOp("flush_all", true)
}

// Size returns the number of live entries.
func (s *Store) Size() int { return s.primary.Size() }

// Empty reports whether the store holds no entries.
func (s *Store) Empty() bool { return s.primary.Size() == 0 }

// ExpiringSize returns the number of entries with a finite deadline.
func (s *Store) ExpiringSize() int { return s.expiry.Size() }

// Keys iterates every live key in the primary index. Used by KEYS and SCAN.
func (s *Store) Keys(yield func(key []byte) bool) {
	s.primary.All(func(e *Entry) bool {
		return yield(e.key)
	})
}

func (s *Store) maybeRehash() {
	before := s.primary.BucketCount()
	s.primary.MaybeRehash()
	if after := s.primary.BucketCount(); after != before {
		s.rehashCount++
		rehashesTotal.Inc()
		bucketCountGauge.Set(float64(after))
	}
}

func (s *Store) rearmTimer() {
	if s.timer == nil {
		return
	}
	s.timer.Arm(s.expiry.NextTimeout())
}

// Sweep drains every entry whose deadline has elapsed, unlinks each from the
// primary index and returns its key buffer to the allocator, invokes the
// registered releaser once per entry (a notification hook only — by the
// time it runs the entry is already gone from both indices), and re-arms
// the timer at the new earliest deadline. Sweep before a releaser is
// registered is a fatal programming error.
func (s *Store) Sweep() error {
	if s.releaser == nil {
		utils.RaiseInvariant("store", "sweep_without_releaser", "Sweep invoked before a releaser was registered.")
		return MissingReleaser
	}
	expired := s.expiry.Expire(s.clock.NowNanos())
	s.sweepCount++
	sweepsTotal.Inc()
	for _, e := range expired {
		s.expiredCount++
		expiredEntriesTotal.Inc()
		s.primary.Remove(e)
		s.releaser(e)
		s.alloc.Put(e.key)
	}
	s.rearmTimer()
	return nil
}
