package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlob_AppendAndBytes(t *testing.T) {
	b := NewBlob([]byte("hello"))
	assert.Equal(t, 5, b.Len())

	n := b.Append([]byte(" world"))
	assert.Equal(t, 11, n)
	assert.Equal(t, []byte("hello world"), b.Bytes())
}

func TestBlob_NilDataBecomesEmpty(t *testing.T) {
	b := NewBlob(nil)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []byte{}, b.Bytes())
}

func TestBlob_AtAndSetAt(t *testing.T) {
	b := NewBlob([]byte("ab"))

	v, ok := b.At(0)
	assert.True(t, ok)
	assert.Equal(t, byte('a'), v)

	_, ok = b.At(5)
	assert.False(t, ok, "reading past the current length is out of range")

	b.SetAt(4, 'z')
	assert.Equal(t, 5, b.Len(), "SetAt past the end must grow the buffer")
	v, ok = b.At(4)
	assert.True(t, ok)
	assert.Equal(t, byte('z'), v)
	// The bytes between the old end and the new write are zero-filled.
	v, ok = b.At(2)
	assert.True(t, ok)
	assert.Equal(t, byte(0), v)
}

func TestBlob_Set(t *testing.T) {
	b := NewBlob([]byte("old"))
	b.Set([]byte("new value"))
	assert.Equal(t, []byte("new value"), b.Bytes())
}
