package core

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"gchat/model"
	"gchat/queue"
	"gchat/util"
)

// Outbox accepts outbound chat actions. *queue.Queue implements it.
type Outbox interface {
	Enqueue(a queue.Action)
}

type Uploader interface {
	Upload(ctx context.Context, key, path, mimeType, label string) (model.Part, error)
}

// Generator is the Gemini surface used by handlers. *model.Client
// implements it.
type Generator interface {
	Uploader
	Generate(ctx context.Context, key string, req model.Request) (string, error)
	Ping(ctx context.Context, key, mdl string) error
}

type Speaker interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Chat is the part of the live client handlers need besides queued sends.
type Chat interface {
	Typing(chatID int64)
	Download(ctx context.Context, chatID int64, msgID int32) (string, error)
	Media(ctx context.Context, chatID int64, msgID int32) (MediaInfo, error)
	Photos(ctx context.Context, chatID int64, limit int) ([]int32, error)
	// OwnMessages returns up to limit messages sent by the account in
	// chatID with ids below offsetID, newest first.
	OwnMessages(ctx context.Context, chatID int64, offsetID int32, limit int) ([]SentMessage, error)
}

// SentMessage is a search hit for the account's own messages.
type SentMessage struct {
	ID   int32
	Out  bool
	Post bool
}

// Incoming is a private message from another user.
type Incoming struct {
	ChatID    int64
	MessageID int32
	UserID    int64
	UserName  string
	Text      string
	Media     MediaInfo
}

type Timing struct {
	TextDebounce    time.Duration
	StickerDebounce time.Duration
	PhotoBatch      time.Duration
}

var DefaultTiming = Timing{
	TextDebounce:    8 * time.Second,
	StickerDebounce: 8 * time.Second,
	PhotoBatch:      10 * time.Second,
}

const botPicLimit = 200

var smileys = []string{"-.-", "):", ":)", "*.*", ")*"}

type Deps struct {
	Settings   *Settings
	History    *History
	Rotator    *model.Rotator
	Gemini     Generator
	Out        Outbox
	Chat       Chat
	Roles      RoleSource
	Voice      Speaker
	Owner      int64
	BotPicChat int64
	Location   *time.Location
	Timing     Timing
}

// Assistant answers private messages from allowed users on the owner's
// behalf.
type Assistant struct {
	Deps

	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	intn  func(n int) int
	now   func() time.Time

	texts    *Debouncer[Incoming]
	stickers *Debouncer[Incoming]
	photos   *Debouncer[photoItem]
}

type photoItem struct {
	Incoming
	Path string
}

func NewAssistant(ctx context.Context, d Deps) *Assistant {
	if d.Timing == (Timing{}) {
		d.Timing = DefaultTiming
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	a := &Assistant{
		Deps:  d,
		ctx:   ctx,
		sleep: util.Sleep,
		intn:  rand.IntN,
		now:   time.Now,
	}
	a.texts = NewDebouncer(d.Timing.TextDebounce, true, a.flushText)
	a.stickers = NewDebouncer(d.Timing.StickerDebounce, true, a.flushStickers)
	a.photos = NewDebouncer(d.Timing.PhotoBatch, false, a.flushPhotos)
	return a
}

func (a *Assistant) HandleText(in Incoming) {
	if !a.Settings.Allowed(in.UserID) {
		return
	}
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return
	}
	a.texts.Add(in.UserID, in)
}

func (a *Assistant) HandleSticker(in Incoming) {
	if !a.Settings.Allowed(in.UserID) {
		return
	}
	a.stickers.Add(in.UserID, in)
}

func (a *Assistant) HandleFile(in Incoming) {
	if !a.Settings.Allowed(in.UserID) {
		return
	}
	label := chatFileLabel(in.Media)
	if in.Media.Kind != MediaPhoto && label == "" {
		return
	}
	caption := strings.TrimSpace(in.Text)
	a.History.Append(in.UserID, userName(in)+": "+caption)

	path, err := a.Chat.Download(a.ctx, in.ChatID, in.MessageID)
	if err != nil {
		a.notify("handle_files error:\n\n" + err.Error())
		return
	}
	if in.Media.Kind == MediaPhoto {
		a.photos.Add(in.UserID, photoItem{Incoming: in, Path: path})
		return
	}
	defer util.RemoveFile(path)

	role, ok := a.role(in.UserID)
	if !ok {
		return
	}
	prompt := buildPrompt(a.now().In(a.Location), role, a.window(in.UserID), describeUpload(label, caption))
	reply, err := model.Call(a.ctx, a.Rotator, model.FilePolicy, func(ctx context.Context, key string) (string, error) {
		file, err := a.Gemini.Upload(ctx, key, path, detectMIME(path, in.Media.MIMEType), label)
		if err != nil {
			return "", err
		}
		return a.Gemini.Generate(ctx, key, model.Request{
			Model:  a.Settings.Model(),
			Parts:  []model.Part{model.TextPart(prompt), file},
			Config: model.ChatConfig,
		})
	})
	if err != nil {
		a.notify("handle_files error:\n\n" + err.Error())
		return
	}
	a.deliver(in.ChatID, in.UserID, in.MessageID, reply)
}

func (a *Assistant) flushText(userID int64, items []Incoming) {
	last := items[len(items)-1]
	texts := make([]string, 0, len(items))
	for _, in := range items {
		texts = append(texts, in.Text)
	}
	combined := strings.Join(texts, " ")

	role, ok := a.role(userID)
	if !ok {
		return
	}
	a.History.Append(userID, userName(last)+": "+combined)
	history := a.window(userID)

	pauses := []time.Duration{3 * time.Second, 5 * time.Second, 7 * time.Second}
	if a.sleep(a.ctx, pauses[a.intn(len(pauses))]) != nil {
		return
	}
	a.Chat.Typing(last.ChatID)
	typing := min(time.Duration(len(combined))*time.Second/10, 5*time.Second)
	if a.sleep(a.ctx, typing) != nil {
		return
	}

	prompt := buildPrompt(a.now().In(a.Location), role, history, combined)
	policy := model.ChatPolicy(len(a.Rotator.Ring().Keys()))
	reply, err := model.Call(a.ctx, a.Rotator, policy, func(ctx context.Context, key string) (string, error) {
		return a.Gemini.Generate(ctx, key, model.Request{
			Model:  a.Settings.Model(),
			Parts:  []model.Part{model.TextPart(prompt)},
			Config: model.ChatConfig,
		})
	})
	if err != nil {
		a.notify("gchat error:\n\n" + err.Error())
		return
	}
	a.deliver(last.ChatID, userID, 0, reply)
}

func (a *Assistant) flushStickers(_ int64, items []Incoming) {
	last := items[len(items)-1]
	wait := 5*time.Second + time.Duration(a.intn(5001))*time.Millisecond
	if a.sleep(a.ctx, wait) != nil {
		return
	}
	a.Out.Enqueue(queue.SendText{
		ChatID:  last.ChatID,
		Text:    smileys[a.intn(len(smileys))],
		ReplyTo: last.MessageID,
	})
}

func (a *Assistant) flushPhotos(userID int64, items []photoItem) {
	defer func() {
		for _, it := range items {
			util.RemoveFile(it.Path)
		}
	}()
	first := items[0]

	images := make([]model.Part, 0, len(items))
	for _, it := range items {
		img, err := readImage(it.Path)
		if err != nil {
			log.Printf("[GCHAT] skip image from %d: %v", userID, err)
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return
	}

	role, ok := a.role(userID)
	if !ok {
		return
	}
	caption := strings.TrimSpace(first.Text)
	text := "User sent multiple images."
	if caption != "" {
		text += " Caption: " + caption
	}
	prompt := buildPrompt(a.now().In(a.Location), role, a.window(userID), text)
	parts := append([]model.Part{model.TextPart(prompt)}, images...)

	reply, err := model.Call(a.ctx, a.Rotator, model.FilePolicy, func(ctx context.Context, key string) (string, error) {
		return a.Gemini.Generate(ctx, key, model.Request{Model: a.Settings.Model(), Parts: parts, Config: model.ChatConfig})
	})
	if err != nil {
		a.notify("handle_files error:\n\n" + err.Error())
		return
	}
	a.deliver(first.ChatID, userID, first.MessageID, reply)
}

// deliver routes a model reply: bot-pic and voice directives first, plain
// text otherwise.
func (a *Assistant) deliver(chatID, userID int64, replyTo int32, reply string) {
	if reply == "" {
		log.Printf("[GCHAT] empty reply for %d", userID)
		return
	}
	if a.sendPics(chatID, reply) {
		return
	}
	a.History.Append(userID, reply)
	if a.sendVoice(chatID, replyTo, reply) {
		return
	}
	a.Out.Enqueue(queue.SendText{ChatID: chatID, Text: reply, ReplyTo: replyTo})
}

// sendPics handles ".gpic [n] [caption]".
func (a *Assistant) sendPics(chatID int64, reply string) bool {
	if !strings.HasPrefix(reply, ".gpic") {
		return false
	}
	fields := strings.Fields(reply)
	n := 1
	if len(fields) >= 2 {
		if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
			n = v
		}
	}
	caption := ""
	if len(fields) >= 3 {
		caption = strings.Join(fields[2:], " ")
	}

	photos, err := a.Chat.Photos(a.ctx, a.BotPicChat, botPicLimit)
	if err != nil {
		log.Printf("[GCHAT] bot pics: %v", err)
	}
	if len(photos) == 0 {
		a.notify("No bot pictures in group/channel.")
		return true
	}
	n = min(n, len(photos))
	picked := make([]int32, 0, n)
	for _, i := range a.perm(len(photos))[:n] {
		picked = append(picked, photos[i])
	}
	a.Out.Enqueue(queue.SendAlbum{ChatID: chatID, FromChat: a.BotPicChat, MessageIDs: picked, Caption: caption})
	return true
}

// sendVoice handles ".el <text>". With voice replies off every reply is
// sent as text with the directive stripped.
func (a *Assistant) sendVoice(chatID int64, replyTo int32, reply string) bool {
	text, isVoice := strings.CutPrefix(reply, ".el")
	text = strings.TrimSpace(text)
	if !a.Settings.VoiceEnabled() {
		a.Out.Enqueue(queue.SendText{ChatID: chatID, Text: text, ReplyTo: replyTo})
		return true
	}
	if !isVoice {
		return false
	}
	if a.Voice != nil {
		path, err := a.Voice.Synthesize(a.ctx, text)
		if err == nil {
			a.Out.Enqueue(queue.SendVoice{ChatID: chatID, Path: path, ReplyTo: replyTo, CleanupPath: path})
			return true
		}
		log.Printf("[GCHAT] tts: %v", err)
	}
	a.Out.Enqueue(queue.SendText{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return true
}

// role resolves the prompt role for userID. A missing "default" role is
// reported to the owner and stops the reply.
func (a *Assistant) role(userID int64) (string, bool) {
	roles := a.Roles.Fetch(a.ctx)
	def, ok := roles["default"]
	if !ok || def == "" {
		a.notify("Err: 'default' role missing.")
		return "", false
	}
	if custom, ok := a.Settings.CustomRole(userID); ok {
		return custom, true
	}
	return def, true
}

func (a *Assistant) window(userID int64) []string {
	head, tail := a.Settings.HistoryLimits()
	return window(a.History.Load(userID), head, tail)
}

func (a *Assistant) notify(text string) {
	a.Out.Enqueue(queue.SendText{ChatID: a.Owner, Text: text})
}

func (a *Assistant) perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		j := a.intn(i + 1)
		p[i] = p[j]
		p[j] = i
	}
	return p
}

func describeUpload(label, caption string) string {
	s := fmt.Sprintf("User sent a %s.", label)
	if caption != "" {
		s += " Caption: " + caption
	}
	return s
}

func userName(in Incoming) string {
	if in.UserName == "" {
		return "User"
	}
	return in.UserName
}
