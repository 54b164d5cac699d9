package core

import (
	"context"
	"fmt"
	"html"
	"log"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gchat/queue"
	"gchat/store"
)

const (
	dmDeleteChunk  = 30
	defaultSlotTTL = 10
	ownPageSize    = 100
	ownDeleteChunk = 100
)

// DM tracks media the owner sends in private chats so it can be wiped
// later, and keeps numbered slots of saved media for quick resending.
type DM struct {
	mu    sync.Mutex
	store store.Store
	out   Outbox
	chat  Chat
	self  int64
}

type slotRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int32 `json:"message_id"`
}

func NewDM(s store.Store, out Outbox, chat Chat, self int64) *DM {
	return &DM{store: s, out: out, chat: chat, self: self}
}

func (d *DM) Enabled() bool {
	return store.GetOr(d.store, dmNS, "enabled", false)
}

func (d *DM) excluded() []string {
	return store.GetOr(d.store, dmNS, "excluded_chats", []string{})
}

func (d *DM) set(key string, v any) {
	if err := d.store.Set(dmNS, key, v); err != nil {
		log.Printf("[STORE] dm %s: %v", key, err)
	}
}

func (d *DM) unset(key string) {
	if err := d.store.Remove(dmNS, key); err != nil {
		log.Printf("[STORE] dm %s: %v", key, err)
	}
}

func mediaKey(chat string) string { return "media:" + chat }

// Track records an outgoing media message. Saved Messages and excluded
// chats are ignored.
func (d *DM) Track(chatID int64, msgID int32) {
	if chatID == d.self || !d.Enabled() {
		return
	}
	chat := strconv.FormatInt(chatID, 10)
	if slices.Contains(d.excluded(), chat) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ids := store.GetOr(d.store, dmNS, mediaKey(chat), []int32{})
	if slices.Contains(ids, msgID) {
		return
	}
	d.set(mediaKey(chat), append(ids, msgID))
	chats := store.GetOr(d.store, dmNS, "chats", []string{})
	if !slices.Contains(chats, chat) {
		d.set("chats", append(chats, chat))
	}
}

func (d *DM) edit(cmd Command, text string) {
	d.out.Enqueue(queue.EditText{ChatID: cmd.ChatID, MessageID: cmd.MessageID, Text: text, Mode: queue.ModeHTML})
}

func (d *DM) command(_ context.Context, cmd Command) {
	arg := strings.ToLower(cmd.Rest)
	switch {
	case arg == "on":
		d.set("enabled", true)
		d.edit(cmd, "Media <b>ON</b>")
		return
	case arg == "off":
		d.set("enabled", false)
		d.edit(cmd, "Media <b>OFF</b>")
		return
	case strings.HasPrefix(arg, "exclude"):
		d.exclude(cmd, strings.Fields(arg))
		return
	}
	d.clean(cmd)
}

func (d *DM) exclude(cmd Command, parts []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	excluded := d.excluded()
	switch len(parts) {
	case 1:
		if len(excluded) == 0 {
			d.edit(cmd, "No excluded chats.")
			return
		}
		d.edit(cmd, "<b>Excluded Chats:</b>\n"+html.EscapeString(strings.Join(excluded, "\n")))
	case 2:
		chat := html.EscapeString(parts[1])
		if i := slices.Index(excluded, parts[1]); i >= 0 {
			d.set("excluded_chats", slices.Delete(excluded, i, i+1))
			d.edit(cmd, fmt.Sprintf("Removed chat <b>%s</b> from excluded list.", chat))
			return
		}
		d.set("excluded_chats", append(excluded, parts[1]))
		d.edit(cmd, fmt.Sprintf("Excluded chat <b>%s</b>", chat))
	default:
		d.edit(cmd, "Usage: <b>dm exclude [chat_id]</b>")
	}
}

// clean deletes every tracked message outside excluded chats and resets
// the tracker.
func (d *DM) clean(cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chats := store.GetOr(d.store, dmNS, "chats", []string{})
	if len(chats) == 0 {
		d.edit(cmd, "No media.")
		return
	}
	d.edit(cmd, "Cleaning...")

	excluded := d.excluded()
	deleted, touched := 0, 0
	for _, chat := range chats {
		ids := store.GetOr(d.store, dmNS, mediaKey(chat), []int32{})
		d.unset(mediaKey(chat))
		if slices.Contains(excluded, chat) || len(ids) == 0 {
			continue
		}
		chatID, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			log.Printf("[DM] bad chat id %q", chat)
			continue
		}
		for chunk := range slices.Chunk(ids, dmDeleteChunk) {
			d.out.Enqueue(queue.DeleteMessages{ChatID: chatID, IDs: chunk})
		}
		deleted += len(ids)
		touched++
	}
	d.set("chats", []string{})
	d.edit(cmd, fmt.Sprintf("Deleted <b>%d</b> in <b>%d</b> chats.", deleted, touched))
}

// slot handles "s<N> [v<ttl>]": replying saves the target into the slot,
// otherwise the slot's media is resent, optionally self-destructing.
func (d *DM) slot(ctx context.Context, cmd Command) {
	name := cmd.Name
	ttl := int32(defaultSlotTTL)
	selfDestruct := len(cmd.Args) == 1
	if selfDestruct {
		if v, err := strconv.Atoi(cmd.Args[0][1:]); err == nil {
			ttl = int32(v)
		}
	}

	if cmd.Reply != nil {
		d.set(name, slotRef{ChatID: cmd.Reply.ChatID, MessageID: cmd.Reply.MessageID})
		d.edit(cmd, fmt.Sprintf("Saved media in <b>%s</b>", name))
		return
	}
	var ref slotRef
	if ok, err := d.store.Get(dmNS, name, &ref); err != nil || !ok {
		d.edit(cmd, fmt.Sprintf("Empty <b>%s</b>", name))
		return
	}

	if !selfDestruct {
		d.out.Enqueue(queue.CopyMessage{ChatID: cmd.ChatID, FromChat: ref.ChatID, MessageID: ref.MessageID})
		d.out.Enqueue(queue.DeleteMessages{ChatID: cmd.ChatID, IDs: []int32{cmd.MessageID}})
		return
	}

	info, err := d.chat.Media(ctx, ref.ChatID, ref.MessageID)
	if err != nil {
		log.Printf("[DM] send failed for slot %s: %v", name, err)
		d.edit(cmd, "Send failed")
		return
	}
	if info.Kind != MediaPhoto && info.Kind != MediaVideo {
		d.edit(cmd, "Only photos/videos support self-destruct.")
		return
	}
	path, err := d.chat.Download(ctx, ref.ChatID, ref.MessageID)
	if err != nil {
		log.Printf("[DM] send failed for slot %s: %v", name, err)
		d.edit(cmd, "Send failed")
		return
	}
	if info.Kind == MediaPhoto {
		d.out.Enqueue(queue.SendPhoto{ChatID: cmd.ChatID, Path: path, TTL: ttl, CleanupPath: path})
	} else {
		d.out.Enqueue(queue.SendVideo{ChatID: cmd.ChatID, Path: path, TTL: ttl, CleanupPath: path})
	}
	d.out.Enqueue(queue.DeleteMessages{ChatID: cmd.ChatID, IDs: []int32{cmd.MessageID}})
}

// deleteOwn removes every message the account sent in the command's chat
// before the command. Channel posts are kept.
func (d *DM) deleteOwn(ctx context.Context, cmd Command) {
	d.edit(cmd, "Searching...")
	ids, err := d.ownHistory(ctx, cmd.ChatID, cmd.MessageID)
	if err != nil {
		log.Printf("[DM] search own messages in %d: %v", cmd.ChatID, err)
		if len(ids) == 0 {
			d.edit(cmd, "Error\n"+html.EscapeString(err.Error()))
			return
		}
	}
	if len(ids) == 0 {
		d.edit(cmd, "No messages from you.")
		return
	}
	for chunk := range slices.Chunk(ids, ownDeleteChunk) {
		d.out.Enqueue(queue.DeleteMessages{ChatID: cmd.ChatID, IDs: chunk})
	}
	d.edit(cmd, fmt.Sprintf("Successfully deleted %d messages.", len(ids)))
}

// ownHistory pages backwards from before and collects outgoing non-post
// ids. On a search error the ids found so far are returned with it.
func (d *DM) ownHistory(ctx context.Context, chatID int64, before int32) ([]int32, error) {
	var ids []int32
	offset := before
	for {
		page, err := d.chat.OwnMessages(ctx, chatID, offset, ownPageSize)
		if err != nil {
			return ids, err
		}
		if len(page) == 0 {
			return ids, nil
		}
		next := offset
		for _, m := range page {
			next = min(next, m.ID)
			if !m.Out || m.Post || m.ID >= before {
				continue
			}
			ids = append(ids, m.ID)
		}
		if next >= offset {
			return ids, nil
		}
		offset = next
	}
}
