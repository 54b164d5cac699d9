package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gchat/queue"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/google/uuid"
)

// tgClient adapts a gogram client to the queue's Sender and the handlers'
// Chat interface.
type tgClient struct {
	client *telegram.Client
	tmpDir string
	onSent func(m *telegram.NewMessage)
}

func tgParseMode(m queue.ParseMode) string {
	switch m {
	case queue.ModeHTML:
		return telegram.HTML
	case queue.ModeMarkdown:
		return "Markdown"
	}
	return ""
}

func (c *tgClient) sent(m *telegram.NewMessage) {
	if m != nil && c.onSent != nil {
		c.onSent(m)
	}
}

func (c *tgClient) SendText(a queue.SendText) error {
	m, err := c.client.SendMessage(a.ChatID, a.Text, &telegram.SendOptions{
		ParseMode: tgParseMode(a.Mode),
		ReplyID:   a.ReplyTo,
	})
	c.sent(m)
	return err
}

func (c *tgClient) EditText(a queue.EditText) error {
	_, err := c.client.EditMessage(a.ChatID, a.MessageID, a.Text, &telegram.SendOptions{ParseMode: tgParseMode(a.Mode)})
	return err
}

func (c *tgClient) DeleteMessages(a queue.DeleteMessages) error {
	_, err := c.client.DeleteMessages(a.ChatID, a.IDs)
	return err
}

func (c *tgClient) sendMedia(chatID int64, media any, opts *telegram.MediaOptions) error {
	m, err := c.client.SendMedia(chatID, media, opts)
	c.sent(m)
	return err
}

func (c *tgClient) SendPhoto(a queue.SendPhoto) error {
	return c.sendMedia(a.ChatID, a.Path, &telegram.MediaOptions{Caption: a.Caption, TTL: a.TTL, ReplyID: a.ReplyTo})
}

func (c *tgClient) SendVideo(a queue.SendVideo) error {
	return c.sendMedia(a.ChatID, a.Path, &telegram.MediaOptions{Caption: a.Caption, TTL: a.TTL, ReplyID: a.ReplyTo})
}

func (c *tgClient) SendVoice(a queue.SendVoice) error {
	return c.sendMedia(a.ChatID, a.Path, &telegram.MediaOptions{
		ReplyID:    a.ReplyTo,
		Attributes: []telegram.DocumentAttribute{&telegram.DocumentAttributeAudio{Voice: true}},
	})
}

func (c *tgClient) SendDocument(a queue.SendDocument) error {
	return c.sendMedia(a.ChatID, a.Path, &telegram.MediaOptions{Caption: a.Caption, ReplyID: a.ReplyTo, ForceDocument: true})
}

func (c *tgClient) SendAlbum(a queue.SendAlbum) error {
	msgs, err := c.client.GetMessages(a.FromChat, &telegram.SearchOption{IDs: a.MessageIDs})
	if err != nil {
		return fmt.Errorf("GetMessages: %w", err)
	}
	var media []telegram.MessageMedia
	for i := range msgs {
		if msgs[i].IsMedia() {
			media = append(media, msgs[i].Media())
		}
	}
	switch len(media) {
	case 0:
		return fmt.Errorf("no media in %d message(s)", len(a.MessageIDs))
	case 1:
		return c.sendMedia(a.ChatID, media[0], &telegram.MediaOptions{Caption: a.Caption})
	}
	sent, err := c.client.SendAlbum(a.ChatID, media, &telegram.MediaOptions{Caption: a.Caption})
	for _, m := range sent {
		c.sent(m)
	}
	return err
}

func (c *tgClient) CopyMessage(a queue.CopyMessage) error {
	msg, err := c.message(a.FromChat, a.MessageID)
	if err != nil {
		return err
	}
	if msg.IsMedia() {
		return c.sendMedia(a.ChatID, msg.Media(), &telegram.MediaOptions{Caption: msg.Text()})
	}
	m, err := c.client.SendMessage(a.ChatID, msg.Text())
	c.sent(m)
	return err
}

func (c *tgClient) message(chatID int64, msgID int32) (*telegram.NewMessage, error) {
	msgs, err := c.client.GetMessages(chatID, &telegram.SearchOption{IDs: []int32{msgID}})
	if err != nil {
		return nil, fmt.Errorf("GetMessages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found", msgID)
	}
	return &msgs[0], nil
}

func (c *tgClient) Typing(chatID int64) {
	c.client.SendAction(chatID, "typing")
}

// Download saves a message's media under a unique temp name, keeping the
// original file name as a suffix so its extension survives.
func (c *tgClient) Download(_ context.Context, chatID int64, msgID int32) (string, error) {
	msg, err := c.message(chatID, msgID)
	if err != nil {
		return "", err
	}
	if !msg.IsMedia() {
		return "", fmt.Errorf("message %d has no media", msgID)
	}
	name := "gchat-" + uuid.NewString()
	info := mediaOf(msg)
	switch {
	case info.FileName != "":
		name += "-" + filepath.Base(info.FileName)
	case info.Kind == MediaPhoto:
		name += ".jpg"
	}
	path, err := c.client.DownloadMedia(msg.Media(), &telegram.DownloadOptions{FileName: filepath.Join(c.tmpDir, name)})
	if err != nil {
		return "", fmt.Errorf("DownloadMedia: %w", err)
	}
	return path, nil
}

func (c *tgClient) Media(_ context.Context, chatID int64, msgID int32) (MediaInfo, error) {
	msg, err := c.message(chatID, msgID)
	if err != nil {
		return MediaInfo{}, err
	}
	return mediaOf(msg), nil
}

// Photos lists the ids of recent photo messages in chatID.
func (c *tgClient) Photos(_ context.Context, chatID int64, limit int) ([]int32, error) {
	if chatID == 0 {
		return nil, nil
	}
	msgs, err := c.client.GetMessages(chatID, &telegram.SearchOption{
		Limit:  int32(limit),
		Filter: &telegram.InputMessagesFilterPhotos{},
	})
	if err != nil {
		return nil, fmt.Errorf("GetMessages: %w", err)
	}
	ids := make([]int32, 0, len(msgs))
	for i := range msgs {
		if msgs[i].Photo() != nil {
			ids = append(ids, msgs[i].ID)
		}
	}
	return ids, nil
}

func (c *tgClient) OwnMessages(_ context.Context, chatID int64, offsetID int32, limit int) ([]SentMessage, error) {
	msgs, err := c.client.GetMessages(chatID, &telegram.SearchOption{
		FromUser: &telegram.InputPeerSelf{},
		Offset:   offsetID,
		Limit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search own messages: %w", err)
	}
	out := make([]SentMessage, 0, len(msgs))
	for i := range msgs {
		if msgs[i].Message == nil {
			continue
		}
		out = append(out, SentMessage{ID: msgs[i].ID, Out: msgs[i].Message.Out, Post: msgs[i].Message.Post})
	}
	return out, nil
}

// mediaOf classifies a message attachment from its document attributes.
// Voice notes and music share the audio attribute and differ by its Voice
// flag; GIFs carry both the animated and the video attribute.
func mediaOf(m *telegram.NewMessage) MediaInfo {
	if m == nil || m.Message == nil || !m.IsMedia() {
		return MediaInfo{}
	}
	if m.Photo() != nil {
		return MediaInfo{Kind: MediaPhoto, MIMEType: "image/jpeg"}
	}
	doc := m.Document()
	if doc == nil {
		return MediaInfo{}
	}
	info := MediaInfo{Kind: MediaDocument, MIMEType: doc.MimeType}
	var sticker, animated, video, round, audio, voice bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *telegram.DocumentAttributeFilename:
			info.FileName = a.FileName
			if strings.HasSuffix(a.FileName, ".tgs") {
				sticker = true
			}
		case *telegram.DocumentAttributeSticker:
			sticker = true
		case *telegram.DocumentAttributeAnimated:
			animated = true
		case *telegram.DocumentAttributeVideo:
			video, round = true, a.RoundMessage
		case *telegram.DocumentAttributeAudio:
			audio, voice = true, a.Voice
		}
	}
	switch {
	case sticker:
		info.Kind = MediaSticker
	case animated:
		info.Kind = MediaAnimation
	case round:
		info.Kind = MediaVideoNote
	case video:
		info.Kind = MediaVideo
	case voice:
		info.Kind = MediaVoice
	case audio:
		info.Kind = MediaAudio
	}
	return info
}

func tempDir(dataDir string) string {
	dir := filepath.Join(dataDir, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}
