package core

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"gchat/model"
	"gchat/store"
)

const (
	settingsNS = model.SettingsNS
	historyNS  = "custom.gchat"
	dmNS       = "custom.dm"

	defaultHistoryHead = 50
	defaultHistoryTail = 50
)

// Settings is the persisted auto-responder configuration. User lists and
// the model name are cached in memory and written through on change.
type Settings struct {
	mu       sync.RWMutex
	store    store.Store
	enabled  []int64
	disabled []int64
	forAll   bool
	model    string
}

func LoadSettings(s store.Store, defaultModel string) *Settings {
	st := &Settings{
		store:    s,
		enabled:  store.GetOr(s, settingsNS, "enabled_users", []int64{}),
		disabled: store.GetOr(s, settingsNS, "disabled_users", []int64{}),
		forAll:   store.GetOr(s, settingsNS, "gchat_for_all", false),
		model:    store.GetOr(s, settingsNS, "gemini_model", ""),
	}
	if st.model == "" {
		st.model = defaultModel
	}
	return st
}

func (st *Settings) set(key string, v any) {
	if err := st.store.Set(settingsNS, key, v); err != nil {
		log.Printf("[STORE] set %s: %v", key, err)
	}
}

// Allowed reports whether the auto-responder should answer userID.
func (st *Settings) Allowed(userID int64) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if slices.Contains(st.disabled, userID) {
		return false
	}
	return st.forAll || slices.Contains(st.enabled, userID)
}

func (st *Settings) Enable(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i := slices.Index(st.disabled, userID); i >= 0 {
		st.disabled = slices.Delete(st.disabled, i, i+1)
		st.set("disabled_users", st.disabled)
	}
	if !slices.Contains(st.enabled, userID) {
		st.enabled = append(st.enabled, userID)
		st.set("enabled_users", st.enabled)
	}
}

func (st *Settings) Disable(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !slices.Contains(st.disabled, userID) {
		st.disabled = append(st.disabled, userID)
		st.set("disabled_users", st.disabled)
	}
	if i := slices.Index(st.enabled, userID); i >= 0 {
		st.enabled = slices.Delete(st.enabled, i, i+1)
		st.set("enabled_users", st.enabled)
	}
}

// Forget drops userID from both lists and reports whether anything changed.
func (st *Settings) Forget(userID int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	changed := false
	if i := slices.Index(st.enabled, userID); i >= 0 {
		st.enabled = slices.Delete(st.enabled, i, i+1)
		st.set("enabled_users", st.enabled)
		changed = true
	}
	if i := slices.Index(st.disabled, userID); i >= 0 {
		st.disabled = slices.Delete(st.disabled, i, i+1)
		st.set("disabled_users", st.disabled)
		changed = true
	}
	return changed
}

// ToggleAll flips answering everyone and returns the new state.
func (st *Settings) ToggleAll() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.forAll = !st.forAll
	st.set("gchat_for_all", st.forAll)
	return st.forAll
}

func (st *Settings) Model() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.model
}

func (st *Settings) SetModel(name string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.model = name
	st.set("gemini_model", name)
}

// VoiceEnabled defaults to on and persists that default on first read.
func (st *Settings) VoiceEnabled() bool {
	var on bool
	ok, err := st.store.Get(settingsNS, "voice_generation_enabled", &on)
	if err != nil || !ok {
		st.set("voice_generation_enabled", true)
		return true
	}
	return on
}

func (st *Settings) SetVoiceEnabled(on bool) {
	st.set("voice_generation_enabled", on)
}

func (st *Settings) DefaultRole() string {
	return store.GetOr(st.store, settingsNS, "default_role", "default")
}

func (st *Settings) SetDefaultRole(name string) {
	st.set("default_role", name)
}

// HistoryLimits returns how many of the oldest and newest history entries
// go into a prompt.
func (st *Settings) HistoryLimits() (head, tail int) {
	head = store.GetOr(st.store, settingsNS, "history_head", defaultHistoryHead)
	tail = store.GetOr(st.store, settingsNS, "history_tail", defaultHistoryTail)
	if head < 0 {
		head = defaultHistoryHead
	}
	if tail < 0 {
		tail = defaultHistoryTail
	}
	return head, tail
}

func (st *Settings) SetHistoryLimits(head, tail int) {
	st.set("history_head", head)
	st.set("history_tail", tail)
}

func customRoleKey(userID int64) string {
	return fmt.Sprintf("custom_roles.%d", userID)
}

func (st *Settings) CustomRole(userID int64) (string, bool) {
	role := store.GetOr(st.store, settingsNS, customRoleKey(userID), "")
	return role, role != ""
}

func (st *Settings) SetCustomRole(userID int64, role string) {
	st.set(customRoleKey(userID), role)
}

func (st *Settings) ResetCustomRole(userID int64) {
	if err := st.store.Remove(settingsNS, customRoleKey(userID)); err != nil {
		log.Printf("[STORE] remove role %d: %v", userID, err)
	}
}
