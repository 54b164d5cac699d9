package core

import (
	"fmt"
	"log"
	"sync"

	"gchat/store"
)

// History keeps the full per-user conversation log used to build prompts.
type History struct {
	mu    sync.Mutex
	store store.Store
}

func NewHistory(s store.Store) *History {
	return &History{store: s}
}

func historyKey(userID int64) string {
	return fmt.Sprintf("chat_history.%d", userID)
}

// Append adds entry to userID's log and returns the updated log.
func (h *History) Append(userID int64, entry string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := store.GetOr(h.store, historyNS, historyKey(userID), []string{})
	entries = append(entries, entry)
	if err := h.store.Set(historyNS, historyKey(userID), entries); err != nil {
		log.Printf("[STORE] history %d: %v", userID, err)
	}
	return entries
}

func (h *History) Load(userID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return store.GetOr(h.store, historyNS, historyKey(userID), []string{})
}

func (h *History) Clear(userID int64) {
	if err := h.store.Remove(historyNS, historyKey(userID)); err != nil {
		log.Printf("[STORE] clear history %d: %v", userID, err)
	}
}

// window keeps the first head and last tail entries of a long log, joined
// by an ellipsis marker.
func window(entries []string, head, tail int) []string {
	if len(entries) <= head+tail {
		return entries
	}
	out := make([]string, 0, head+tail+1)
	out = append(out, entries[:head]...)
	out = append(out, "...")
	out = append(out, entries[len(entries)-tail:]...)
	return out
}
