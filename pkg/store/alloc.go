package store

import "sync"

// Allocator is the store's shared-resource collaborator for key buffers:
// SetString interns each newly inserted key through Get, and the store hands
// keys of removed entries back through Put. Payload backing arrays (Bytes,
// HLL and the other kinds) and the Entry structs themselves are ordinary Go
// allocations and do not go through the Allocator. Routing key allocation
// through one seam means a pooled implementation can recycle key buffers
// across inserts and erases without the store itself knowing the difference.
type Allocator interface {
	// Get returns a buffer of exactly size n. Its contents are unspecified
	// (callers must overwrite before reading).
	Get(n int) []byte
	// Put returns a buffer previously obtained from Get back to the
	// allocator. Callers must not use b after calling Put.
	Put(b []byte)
}

// GoAllocator is the default Allocator: it defers entirely to the Go
// runtime's garbage collector. Buffers returned by Put are simply dropped.
type GoAllocator struct{}

var _ Allocator = GoAllocator{}

func (GoAllocator) Get(n int) []byte { return make([]byte, n) }
func (GoAllocator) Put([]byte)       {}

// poolSizeClasses is the number of size classes PooledAllocator keeps one
// sync.Pool for, so buffers of wildly different sizes don't thrash a single
// pool's freelist.
const poolSizeClasses = 16

// PooledAllocator recycles buffers through a small set of sync.Pools, one
// per power-of-two size class, the same way a block cache reuses a single
// buffer pool for repeated block-sized allocations. It trades a little
// wasted capacity (every buffer is rounded up to its size class) for
// materially fewer GC-visible allocations on the hot insert path.
type PooledAllocator struct {
	pools [poolSizeClasses]sync.Pool
}

var _ Allocator = (*PooledAllocator)(nil)

// NewPooledAllocator constructs a PooledAllocator with empty pools.
func NewPooledAllocator() *PooledAllocator {
	pa := &PooledAllocator{}
	for class := range pa.pools {
		capacity := sizeClassCapacity(class)
		pa.pools[class].New = func() any {
			buf := make([]byte, capacity)
			return &buf
		}
	}
	return pa
}

// sizeClassCapacity returns the buffer capacity served by size class i:
// 16, 32, 64, ... doubling, topping out at 16<<(poolSizeClasses-1).
func sizeClassCapacity(class int) int {
	return 16 << class
}

// classFor returns the smallest size class whose capacity is >= n, or -1 if
// n exceeds every class (the caller should allocate directly in that case).
func classFor(n int) int {
	for class := range poolSizeClasses {
		if sizeClassCapacity(class) >= n {
			return class
		}
	}
	return -1
}

func (pa *PooledAllocator) Get(n int) []byte {
	class := classFor(n)
	if class < 0 {
		return make([]byte, n)
	}
	bufPtr := pa.pools[class].Get().(*[]byte)
	buf := (*bufPtr)[:n]
	clear(buf)
	return buf
}

func (pa *PooledAllocator) Put(b []byte) {
	class := classFor(cap(b))
	if class < 0 || sizeClassCapacity(class) != cap(b) {
		return // Not one of ours (e.g. grown past its class); let the GC take it.
	}
	full := b[:cap(b)]
	pa.pools[class].Put(&full)
}
