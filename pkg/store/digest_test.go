package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_ObserveAndMaybeContains(t *testing.T) {
	d := NewDigest(1000, 0.01)

	assert.False(t, d.MaybeContains([]byte("absent")), "a never-observed key must never be reported present")

	d.Observe([]byte("k1"))
	assert.True(t, d.MaybeContains([]byte("k1")), "an observed key must always test present")
}

func TestDigest_RebuildReplacesContents(t *testing.T) {
	d := NewDigest(1000, 0.01)
	d.Observe([]byte("stale"))
	require.True(t, d.MaybeContains([]byte("stale")))

	d.Rebuild(func(yield func([]byte) bool) {
		yield([]byte("fresh"))
	})

	assert.True(t, d.MaybeContains([]byte("fresh")))
}
