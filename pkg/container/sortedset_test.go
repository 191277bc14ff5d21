package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedSet_AddAndScore(t *testing.T) {
	z := NewSortedSet()

	isNew := z.Add("alice", 10)
	assert.True(t, isNew)

	isNew = z.Add("alice", 20)
	assert.False(t, isNew, "re-adding an existing member updates score but is not new")

	score, ok := z.Score("alice")
	assert.True(t, ok)
	assert.Equal(t, 20.0, score)

	_, ok = z.Score("bob")
	assert.False(t, ok)
}

func TestSortedSet_AddSameScoreIsNoop(t *testing.T) {
	z := NewSortedSet()
	z.Add("alice", 5)
	isNew := z.Add("alice", 5)
	assert.False(t, isNew)
	assert.Equal(t, 1, z.Len())
}

func TestSortedSet_RemoveAbsentMember(t *testing.T) {
	z := NewSortedSet()
	assert.False(t, z.Remove("ghost"))
	z.Add("alice", 1)
	assert.True(t, z.Remove("alice"))
	assert.Equal(t, 0, z.Len())
}

func TestSortedSet_RangeOrdersByScoreThenMember(t *testing.T) {
	z := NewSortedSet()
	z.Add("charlie", 3)
	z.Add("alice", 1)
	z.Add("bob", 1) // Ties on score break lexically by member.

	got := z.Range(0, -1)
	want := []Pair{
		{Member: "alice", Score: 1},
		{Member: "bob", Score: 1},
		{Member: "charlie", Score: 3},
	}
	assert.Equal(t, want, got)
}

func TestSortedSet_RangeByScore(t *testing.T) {
	z := NewSortedSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 3)
	z.Add("d", 4)

	got := z.RangeByScore(2, 3)
	want := []Pair{{Member: "b", Score: 2}, {Member: "c", Score: 3}}
	assert.Equal(t, want, got)

	assert.Empty(t, z.RangeByScore(10, 20))
}

func TestSortedSet_All(t *testing.T) {
	z := NewSortedSet()
	assert.Empty(t, z.All())
	z.Add("x", 1)
	z.Add("y", 2)
	assert.Equal(t, []Pair{{Member: "x", Score: 1}, {Member: "y", Score: 2}}, z.All())
}
