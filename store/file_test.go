package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_SetGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	f, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Set("custom.gsettings", "gemini_keys", []string{"a", "b"}))
	require.NoError(t, f.Set("custom.gsettings", "current_key_index", 1))

	var keys []string
	ok, err := f.Get("custom.gsettings", "gemini_keys", &keys)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.Equal(t, 1, GetOr(f, "custom.gsettings", "current_key_index", 0))
	assert.Equal(t, 7, GetOr(f, "custom.gsettings", "missing", 7))

	require.NoError(t, f.Remove("custom.gsettings", "gemini_keys"))
	ok, err = f.Get("custom.gsettings", "gemini_keys", &keys)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Remove("custom.gsettings", "never-set"))
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	f, err := OpenFile(path)
	require.NoError(t, err)

	slot := map[string]int64{"chat_id": -100, "message_id": 42}
	require.NoError(t, f.Set("custom.dm", "s1", slot))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got := GetOr(reopened, "custom.dm", "s1", map[string]int64{})
	assert.Equal(t, slot, got)
}

func TestFile_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.False(t, GetOr(f, "custom.dm", "enabled", false))
}

func TestGetOr_TypeMismatchFallsBack(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	require.NoError(t, f.Set("ns", "k", "not a number"))
	assert.Equal(t, 50, GetOr(f, "ns", "k", 50))
}
