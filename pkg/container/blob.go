package container

// Blob is a growable byte buffer backing the Bytes and HLL payload kinds.
// Unlike a bare []byte, a Blob is a stable, mutable object the store can
// hand out via accessors without the caller's append() silently detaching
// from the entry (append beyond the capacity of a plain slice re-allocates
// and orphans the entry's copy; Blob always mutates in place or re-points
// its own backing array, and Bytes() always reflects the live contents).
type Blob struct {
	data []byte
}

// NewBlob constructs a Blob taking ownership of data (no copy).
func NewBlob(data []byte) *Blob {
	if data == nil {
		data = []byte{}
	}
	return &Blob{data: data}
}

// Len returns the number of bytes currently stored.
func (b *Blob) Len() int { return len(b.data) }

// Bytes returns the live backing slice. Callers that need to retain it past
// the next mutating call must copy it.
func (b *Blob) Bytes() []byte { return b.data }

// Set replaces the entire contents of the blob.
func (b *Blob) Set(data []byte) { b.data = data }

// Append appends data to the blob's contents and returns the new length
// (Redis APPEND semantics).
func (b *Blob) Append(data []byte) int {
	b.data = append(b.data, data...)
	return len(b.data)
}

// At returns the byte at the given offset and whether it was in range (used
// by the HLL register accessors).
func (b *Blob) At(offset int) (byte, bool) {
	if offset < 0 || offset >= len(b.data) {
		return 0, false
	}
	return b.data[offset], true
}

// SetAt overwrites the byte at offset, growing the buffer with zero bytes if
// necessary.
func (b *Blob) SetAt(offset int, value byte) {
	if offset >= len(b.data) {
		grown := make([]byte, offset+1)
		copy(grown, b.data)
		b.data = grown
	}
	b.data[offset] = value
}
