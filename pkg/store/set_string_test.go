package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetString_PlainSetOverwrites(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")

	result, err := s.SetString(key, hash, []byte("v1"), 0, false, false, false, false)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	result, err = s.SetString(key, hash, []byte("v2"), 0, false, false, false, false)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		blob, err := v.ValueBlob()
		assert.NoError(t, err)
		assert.Equal(t, []byte("v2"), blob.Bytes())
	})
}

func TestSetString_NXRejectsExistingKey(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	_, err := s.SetString(key, hash, []byte("v1"), 0, false, false, false, false)
	require.NoError(t, err)

	result, err := s.SetString(key, hash, []byte("v2"), 0, true, false, false, false)
	require.NoError(t, err)
	assert.False(t, result.Applied)

	s.Get(key, hash, func(v *View, found bool) {
		require.True(t, found)
		blob, _ := v.ValueBlob()
		assert.Equal(t, []byte("v1"), blob.Bytes(), "a rejected NX set must not change the value")
	})
}

func TestSetString_XXRejectsAbsentKey(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("absent"), keyHashForTest(t, "absent")

	result, err := s.SetString(key, hash, []byte("v1"), 0, false, true, false, false)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.False(t, s.Exists(key, hash))
}

func TestSetString_NXAndXXTogetherIsInvalid(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.SetString([]byte("k"), keyHashForTest(t, "k"), []byte("v"), 0, true, true, false, false)
	assert.ErrorIs(t, err, InvalidPredicate)
}

func TestSetString_GetReturnsPreviousValue(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	_, err := s.SetString(key, hash, []byte("old"), 0, false, false, false, false)
	require.NoError(t, err)

	result, err := s.SetString(key, hash, []byte("new"), 0, false, false, false, true)
	require.NoError(t, err)
	assert.True(t, result.HasPreviousValue)
	assert.Equal(t, []byte("old"), result.PreviousValue)
	assert.True(t, result.Applied)
}

func TestSetString_KeepTTLPreservesExpiration(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	_, err := s.SetString(key, hash, []byte("v1"), 1000, false, false, false, false)
	require.NoError(t, err)
	require.Greater(t, s.TTLMillis(key, hash), int64(-1))

	_, err = s.SetString(key, hash, []byte("v2"), 0, false, false, true /*keepTTL*/, false)
	require.NoError(t, err)
	assert.Greater(t, s.TTLMillis(key, hash), int64(-1), "KEEPTTL must preserve the prior expiration")
}

func TestSetString_PlainOverwriteClearsExpiration(t *testing.T) {
	s, _, _ := newTestStore()
	key, hash := []byte("k"), keyHashForTest(t, "k")
	_, err := s.SetString(key, hash, []byte("v1"), 1000, false, false, false, false)
	require.NoError(t, err)

	_, err = s.SetString(key, hash, []byte("v2"), 0, false, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), s.TTLMillis(key, hash), "a plain SET without KEEPTTL clears any prior expiration")
}
