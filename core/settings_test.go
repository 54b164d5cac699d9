package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gchat/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_Persist(t *testing.T) {
	s := openStore(t)
	st := LoadSettings(s, "gemini-x")

	assert.Equal(t, "gemini-x", st.Model())
	st.Enable(1)
	st.Disable(2)
	st.SetModel("gemini-y")
	assert.True(t, st.Allowed(1))
	assert.False(t, st.Allowed(2))
	assert.False(t, st.Allowed(3))

	reloaded := LoadSettings(s, "gemini-x")
	assert.True(t, reloaded.Allowed(1))
	assert.False(t, reloaded.Allowed(2))
	assert.Equal(t, "gemini-y", reloaded.Model())

	require.True(t, reloaded.ToggleAll())
	assert.True(t, reloaded.Allowed(3))
	assert.False(t, reloaded.Allowed(2), "disabled users stay off in all-users mode")

	reloaded.Enable(2)
	assert.True(t, reloaded.Allowed(2))
	assert.True(t, reloaded.Forget(2))
	assert.False(t, reloaded.Forget(2))
}

func TestSettings_Defaults(t *testing.T) {
	st := LoadSettings(openStore(t), "m")

	assert.True(t, st.VoiceEnabled())
	st.SetVoiceEnabled(false)
	assert.False(t, st.VoiceEnabled())

	assert.Equal(t, "default", st.DefaultRole())
	head, tail := st.HistoryLimits()
	assert.Equal(t, defaultHistoryHead, head)
	assert.Equal(t, defaultHistoryTail, tail)

	_, ok := st.CustomRole(5)
	assert.False(t, ok)
	st.SetCustomRole(5, "x")
	role, ok := st.CustomRole(5)
	assert.True(t, ok)
	assert.Equal(t, "x", role)
	st.ResetCustomRole(5)
	_, ok = st.CustomRole(5)
	assert.False(t, ok)
}

func TestHistoryWindow(t *testing.T) {
	entries := []string{"1", "2", "3", "4", "5", "6"}
	assert.Equal(t, entries, window(entries, 3, 3))
	assert.Equal(t, []string{"1", "2", "...", "6"}, window(entries, 2, 1))
	assert.Equal(t, []string{"...", "5", "6"}, window(entries, 0, 2))
}

func TestHistory_AppendAndClear(t *testing.T) {
	h := NewHistory(openStore(t))
	h.Append(7, "a: hi")
	got := h.Append(7, "hello")
	assert.Equal(t, []string{"a: hi", "hello"}, got)
	assert.Equal(t, got, h.Load(7))
	assert.Empty(t, h.Load(8))

	h.Clear(7)
	assert.Empty(t, h.Load(7))
}

func TestBuildPrompt(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := buildPrompt(now, "be kind", []string{"Ann: hi", "hello"}, "how are you")
	assert.Equal(t, "Current Time: 2024-01-02 03:04:05\nRole:\nbe kind\nChat History:\nAnn: hi\nhello\nUser Message:\nhow are you", got)

	assert.Equal(t, time.UTC, loadLocation("Not/AZone"))
}

func TestParseRoles(t *testing.T) {
	roles, err := parseRoles([]byte(`{"default": "be nice", "poet": ["line one", "line two"], "n": 3}`))
	require.NoError(t, err)
	assert.Equal(t, Roles{"default": "be nice", "poet": "line one\nline two", "n": "3"}, roles)
	assert.Equal(t, "- default\n- n\n- poet", roles.list())
	assert.Equal(t, "No roles found.", Roles{}.list())

	_, err = parseRoles([]byte("not json"))
	assert.Error(t, err)
}

func TestRoleFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"default": "plain", "pirate": "arr"}`))
	}))
	defer srv.Close()

	st := LoadSettings(openStore(t), "m")
	f := NewRoleFetcher(srv.URL, st)
	assert.Equal(t, "plain", f.Fetch(context.Background())["default"])

	st.SetDefaultRole("pirate")
	assert.Equal(t, "arr", f.Fetch(context.Background())["default"])

	f = NewRoleFetcher(srv.URL+"/missing\x7f", st)
	assert.Empty(t, f.Fetch(context.Background()))
}

func TestRoleFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewRoleFetcher(srv.URL, LoadSettings(openStore(t), "m"))
	assert.Empty(t, f.Fetch(context.Background()))
}

func TestInputFor(t *testing.T) {
	tests := []struct {
		media MediaInfo
		want  fileInput
		label string
	}{
		{MediaInfo{Kind: MediaPhoto}, fileInput{inline: true, label: "image"}, ""},
		{MediaInfo{Kind: MediaVideoNote}, fileInput{label: "video"}, "video"},
		{MediaInfo{Kind: MediaVoice}, fileInput{label: "audio", fileFirst: true}, "audio"},
		{MediaInfo{Kind: MediaDocument, FileName: "A.PDF"}, fileInput{label: "PDF"}, "pdf"},
		{MediaInfo{Kind: MediaDocument, FileName: "a.txt"}, fileInput{label: "document", fileFirst: true}, "document"},
	}
	for _, tt := range tests {
		t.Run(tt.media.Kind.String(), func(t *testing.T) {
			got, err := inputFor(tt.media)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.label, chatFileLabel(tt.media))
		})
	}

	_, err := inputFor(MediaInfo{Kind: MediaSticker})
	assert.ErrorIs(t, err, errUnsupportedFile)
}

func TestReadImage_RejectsGarbage(t *testing.T) {
	_, err := readImage(writeFile(t, t.TempDir(), "x.png", "not an image"))
	assert.Error(t, err)

	part, err := readImage(writePNG(t, t.TempDir(), "ok.png"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", part.MIMEType)
}

func TestChunkRunes(t *testing.T) {
	assert.Equal(t, []string{"ab", "cd", "e"}, chunkRunes("abcde", 2))
	assert.Equal(t, []string{"héé"}, chunkRunes("héé", 3))
	assert.Nil(t, chunkRunes("", 3))
	assert.Len(t, chunkRunes(strings.Repeat("ж", 9), 4), 3)
}
