package core

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gchat/model"
	"gchat/queue"
	"gchat/store"

	"github.com/stretchr/testify/require"
)

type fakeOut struct {
	mu      sync.Mutex
	actions []queue.Action
}

func (f *fakeOut) Enqueue(a queue.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
}

func (f *fakeOut) all() []queue.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Action(nil), f.actions...)
}

func (f *fakeOut) texts() []queue.SendText {
	var out []queue.SendText
	for _, a := range f.all() {
		if t, ok := a.(queue.SendText); ok {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeOut) edits() []string {
	var out []string
	for _, a := range f.all() {
		if e, ok := a.(queue.EditText); ok {
			out = append(out, e.Text)
		}
	}
	return out
}

func (f *fakeOut) lastEdit() string {
	edits := f.edits()
	if len(edits) == 0 {
		return ""
	}
	return edits[len(edits)-1]
}

type uploadCall struct {
	Key, Path, MIME, Label string
}

type fakeGemini struct {
	mu           sync.Mutex
	requests     []model.Request
	keys         []string
	uploads      []uploadCall
	GenerateFunc func(key string, req model.Request) (string, error)
	UploadFunc   func(key, path, mime, label string) (model.Part, error)
	PingFunc     func(key, mdl string) error
}

func (f *fakeGemini) Generate(_ context.Context, key string, req model.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.keys = append(f.keys, key)
	fn := f.GenerateFunc
	f.mu.Unlock()
	if fn == nil {
		return "ok", nil
	}
	return fn(key, req)
}

func (f *fakeGemini) Upload(_ context.Context, key, path, mime, label string) (model.Part, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, uploadCall{key, path, mime, label})
	fn := f.UploadFunc
	f.mu.Unlock()
	if fn == nil {
		return model.Part{FileURI: "files/" + label, MIMEType: mime}, nil
	}
	return fn(key, path, mime, label)
}

func (f *fakeGemini) Ping(_ context.Context, key, mdl string) error {
	if f.PingFunc == nil {
		return nil
	}
	return f.PingFunc(key, mdl)
}

func (f *fakeGemini) calls() ([]model.Request, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Request(nil), f.requests...), append([]string(nil), f.keys...)
}

type fakeChat struct {
	mu        sync.Mutex
	files     map[int32]string
	media     map[int32]MediaInfo
	photos    []int32
	typing    []int64
	downloads int
	own       []SentMessage
	ownErr    error
	ownOK     int
	searches  []int32
}

func (f *fakeChat) Typing(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, chatID)
}

func (f *fakeChat) Download(_ context.Context, _ int64, msgID int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	path, ok := f.files[msgID]
	if !ok {
		return "", fmt.Errorf("message %d not found", msgID)
	}
	return path, nil
}

func (f *fakeChat) Media(_ context.Context, _ int64, msgID int32) (MediaInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.media[msgID]
	if !ok {
		return MediaInfo{}, fmt.Errorf("message %d not found", msgID)
	}
	return info, nil
}

func (f *fakeChat) Photos(context.Context, int64, int) ([]int32, error) {
	return f.photos, nil
}

// OwnMessages pages through own newest first, like a history search.
func (f *fakeChat) OwnMessages(_ context.Context, _ int64, offsetID int32, limit int) ([]SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, offsetID)
	if f.ownErr != nil && len(f.searches) > f.ownOK {
		return nil, f.ownErr
	}
	var page []SentMessage
	for i := len(f.own) - 1; i >= 0 && len(page) < limit; i-- {
		if f.own[i].ID < offsetID {
			page = append(page, f.own[i])
		}
	}
	return page, nil
}

type fakeRoles struct {
	roles Roles
}

func (f *fakeRoles) Fetch(context.Context) Roles {
	out := make(Roles, len(f.roles))
	for k, v := range f.roles {
		out[k] = v
	}
	return out
}

type fakeSpeaker struct {
	path string
	err  error
	got  []string
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text string) (string, error) {
	f.got = append(f.got, text)
	return f.path, f.err
}

const (
	testOwner  = int64(1000)
	testUser   = int64(42)
	testPicHub = int64(-100500)
)

type harness struct {
	store  store.Store
	out    *fakeOut
	gemini *fakeGemini
	chat   *fakeChat
	roles  *fakeRoles
	voice  *fakeSpeaker
	a      *Assistant
}

func newHarness(t *testing.T, keys ...string) *harness {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ring := model.NewKeyRing(s, "")
	for _, k := range keys {
		require.NoError(t, ring.Add(k))
	}
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	h := &harness{
		store:  s,
		out:    &fakeOut{},
		gemini: &fakeGemini{},
		chat:   &fakeChat{files: map[int32]string{}, media: map[int32]MediaInfo{}},
		roles:  &fakeRoles{roles: Roles{"default": "be nice", "pirate": "talk like a pirate"}},
		voice:  &fakeSpeaker{},
	}
	h.a = NewAssistant(context.Background(), Deps{
		Settings:   LoadSettings(s, model.DefaultModel),
		History:    NewHistory(s),
		Rotator:    model.NewRotator(ring).WithSleep(noSleep),
		Gemini:     h.gemini,
		Out:        h.out,
		Chat:       h.chat,
		Roles:      h.roles,
		Voice:      h.voice,
		Owner:      testOwner,
		BotPicChat: testPicHub,
		Timing: Timing{
			TextDebounce:    20 * time.Millisecond,
			StickerDebounce: 20 * time.Millisecond,
			PhotoBatch:      20 * time.Millisecond,
		},
	})
	h.a.sleep = noSleep
	h.a.intn = func(int) int { return 0 }
	h.a.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
