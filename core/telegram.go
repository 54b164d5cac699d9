package core

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gchat/model"
	"gchat/queue"
	"gchat/store"
	"gchat/voice"

	"github.com/amarnathcjd/gogram/telegram"
)

// TelegramBot runs the userbot: the auto-responder on incoming private
// messages and owner commands on outgoing ones.
type TelegramBot struct {
	client    *telegram.Client
	tg        *tgClient
	store     store.Store
	queue     *queue.Queue
	me        *telegram.UserObj
	ctx       context.Context
	assistant *Assistant
	commands  *Commands
	dm        *DM
}

func NewTelegramBot(s store.Store) (*TelegramBot, error) {
	if Cfg.TelegramAPIID == 0 || Cfg.TelegramAPIHash == "" {
		return nil, fmt.Errorf("telegram not configured")
	}
	client, err := telegram.NewClient(telegram.ClientConfig{
		AppID:   int32(Cfg.TelegramAPIID),
		AppHash: Cfg.TelegramAPIHash,
		Session: Cfg.SessionFile,
		// Flood waits surface as errors so the reply queue can pace itself.
		FloodHandler: func(error) bool { return false },
	})
	if err != nil {
		return nil, fmt.Errorf("gogram init: %w", err)
	}
	return &TelegramBot{
		client: client,
		tg:     &tgClient{client: client, tmpDir: tempDir(Cfg.DataDir)},
		store:  s,
	}, nil
}

func (b *TelegramBot) login() error {
	if _, err := b.client.Conn(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if ok, _ := b.client.IsAuthorized(); ok {
		return nil
	}
	if Cfg.TelegramPhone == "" {
		return errors.New("TELEGRAM_PHONE is required for the first login")
	}
	if _, err := b.client.Login(Cfg.TelegramPhone); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	log.Printf("[TG] connecting...")
	if err := b.login(); err != nil {
		return err
	}
	me, err := b.client.GetMe()
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	b.me = me
	b.ctx = ctx
	log.Printf("[TG] logged in as @%s (%d)", me.Username, me.ID)

	b.queue = queue.New(b.tg,
		queue.WithPace(Cfg.ReplyDelay),
		queue.WithNotifier(func(text string) error {
			_, err := b.client.SendMessage(me.ID, text)
			return err
		}),
	)

	settings := LoadSettings(b.store, Cfg.GeminiModel)
	b.assistant = NewAssistant(ctx, Deps{
		Settings:   settings,
		History:    NewHistory(b.store),
		Rotator:    model.NewRotator(model.NewKeyRing(b.store, Cfg.GeminiAPIKey)),
		Gemini:     model.New(),
		Out:        b.queue,
		Chat:       b.tg,
		Roles:      NewRoleFetcher(Cfg.RolesURL, settings),
		Voice:      voice.New(Cfg.VoiceLang),
		Owner:      me.ID,
		BotPicChat: Cfg.BotPicChatID,
		Location:   loadLocation(Cfg.Timezone),
	})
	b.dm = NewDM(b.store, b.queue, b.tg, me.ID)
	b.commands = NewCommands(b.assistant, b.dm, Cfg.Prefix)
	b.tg.onSent = b.trackSent

	b.queue.Start(ctx)

	b.client.On(telegram.OnMessage, b.onOutgoing)
	b.client.On(telegram.OnMessage, b.onPrivate, telegram.FilterPrivate)
	return nil
}

// Idle blocks until the client disconnects.
func (b *TelegramBot) Idle() {
	b.client.Idle()
}

func (b *TelegramBot) Stop() {
	if err := b.client.Stop(); err != nil {
		log.Printf("[TG] stop: %v", err)
	}
}

func (b *TelegramBot) trackSent(m *telegram.NewMessage) {
	if m.IsMedia() && m.IsPrivate() {
		b.dm.Track(m.ChatID(), m.ID)
	}
}

func (b *TelegramBot) onOutgoing(m *telegram.NewMessage) error {
	if m.Message == nil || !m.Message.Out {
		return nil
	}
	if cmd, ok := b.commands.Parse(m.Text()); ok {
		cmd.ChatID, cmd.MessageID = m.ChatID(), m.ID
		if m.IsReply() {
			if r, err := m.GetReplyMessage(); err == nil {
				cmd.Reply = &Replied{ChatID: r.ChatID(), MessageID: r.ID, Media: mediaOf(r)}
			}
		}
		if b.commands.Dispatch(b.ctx, cmd) {
			log.Printf("[TG] command %q in chat %d", cmd.Name, cmd.ChatID)
			return nil
		}
	}
	if m.IsMedia() && m.IsPrivate() {
		b.dm.Track(m.ChatID(), m.ID)
	}
	return nil
}

func (b *TelegramBot) onPrivate(m *telegram.NewMessage) error {
	if m.Message != nil && m.Message.Out {
		return nil
	}
	if m.Sender == nil || m.Sender.Bot || m.Sender.ID == b.me.ID {
		return nil
	}
	in := Incoming{
		ChatID:    m.ChatID(),
		MessageID: m.ID,
		UserID:    m.Sender.ID,
		UserName:  m.Sender.FirstName,
		Text:      m.Text(),
		Media:     mediaOf(m),
	}
	switch in.Media.Kind {
	case MediaNone:
		b.assistant.HandleText(in)
	case MediaSticker, MediaAnimation:
		b.assistant.HandleSticker(in)
	default:
		b.assistant.HandleFile(in)
	}
	return nil
}
