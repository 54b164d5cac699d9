package model

import (
	"testing"

	"gchat/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRing_FallbackKey(t *testing.T) {
	ring, _ := newRing(t, nil, "env-key")
	assert.Equal(t, []string{"env-key"}, ring.Keys())
	assert.Empty(t, ring.Stored())

	key, idx, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
	assert.Equal(t, 0, idx)
}

func TestKeyRing_AddSelectDelete(t *testing.T) {
	ring, s := newRing(t, nil, "env-key")
	require.NoError(t, ring.Add("k1"))
	require.NoError(t, ring.Add("k2"))
	require.NoError(t, ring.Add("k3"))
	assert.Equal(t, []string{"k1", "k2", "k3"}, ring.Keys())

	require.NoError(t, ring.Select(2))
	key, _, err := ring.Current()
	require.NoError(t, err)
	assert.Equal(t, "k3", key)

	assert.Error(t, ring.Select(3))
	assert.Error(t, ring.Delete(-1))

	require.NoError(t, ring.Delete(2))
	assert.Equal(t, []string{"k1", "k2"}, ring.Keys())
	assert.Equal(t, 1, store.GetOr(s, SettingsNS, currentIdxKey, -1))
}

func TestKeyRing_StaleIndexIsClamped(t *testing.T) {
	ring, s := newRing(t, []string{"a", "b"}, "")
	require.NoError(t, s.Set(SettingsNS, currentIdxKey, 9))
	assert.Equal(t, 0, ring.Index())

	next, err := ring.Advance()
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestKeyRing_AdvanceWithoutKeys(t *testing.T) {
	ring, _ := newRing(t, nil, "")
	_, err := ring.Advance()
	assert.ErrorIs(t, err, ErrNoKeys)
}
