package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_PushAndOrder(t *testing.T) {
	l := NewList()
	l.PushBack([]byte("b"))
	l.PushFront([]byte("a"))
	l.PushBack([]byte("c"))

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, l.All())
}

func TestList_PopFrontAndBack(t *testing.T) {
	l := NewList()
	l.PushBack([]byte("a"))
	l.PushBack([]byte("b"))
	l.PushBack([]byte("c"))

	front, ok := l.PopFront()
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), front)

	back, ok := l.PopBack()
	assert.True(t, ok)
	assert.Equal(t, []byte("c"), back)

	assert.Equal(t, 1, l.Len())

	_, ok = l.PopFront()
	assert.True(t, ok)
	_, ok = l.PopFront()
	assert.False(t, ok, "popping an empty list must report false")
}

func TestList_IndexAndSet(t *testing.T) {
	l := NewList()
	for _, v := range []string{"a", "b", "c"} {
		l.PushBack([]byte(v))
	}

	v, ok := l.Index(1)
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), v)

	v, ok = l.Index(-1)
	assert.True(t, ok, "negative index should count from the tail")
	assert.Equal(t, []byte("c"), v)

	_, ok = l.Index(99)
	assert.False(t, ok)

	assert.True(t, l.Set(0, []byte("z")))
	v, _ = l.Index(0)
	assert.Equal(t, []byte("z"), v)

	assert.False(t, l.Set(99, []byte("nope")))
}

func TestList_Range(t *testing.T) {
	l := NewList()
	for _, v := range []string{"a", "b", "c", "d"} {
		l.PushBack([]byte(v))
	}

	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, l.Range(1, 2))
	assert.Equal(t, [][]byte{[]byte("c"), []byte("d")}, l.Range(-2, -1))
	assert.Equal(t, [][]byte{}, l.Range(3, 1), "an inverted range is empty")

	empty := NewList()
	assert.Equal(t, [][]byte{}, empty.Range(0, -1))
}
