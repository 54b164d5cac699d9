package model

import (
	"fmt"
	"sync"

	"gchat/store"
)

const (
	SettingsNS    = "custom.gsettings"
	keysKey       = "gemini_keys"
	currentIdxKey = "current_key_index"
)

// KeyRing is the persisted list of Gemini API keys and the index of the one
// in use. With nothing stored it falls back to the configured key.
type KeyRing struct {
	mu       sync.Mutex
	store    store.Store
	fallback string
}

func NewKeyRing(s store.Store, fallback string) *KeyRing {
	return &KeyRing{store: s, fallback: fallback}
}

// Stored returns only the keys saved in the store.
func (k *KeyRing) Stored() []string {
	return store.GetOr(k.store, SettingsNS, keysKey, []string{})
}

// Keys returns the effective key list.
func (k *KeyRing) Keys() []string {
	keys := k.Stored()
	if len(keys) == 0 && k.fallback != "" {
		return []string{k.fallback}
	}
	return keys
}

// Index returns the persisted index clamped into [0, len(keys)).
func (k *KeyRing) Index() int {
	return clampIndex(store.GetOr(k.store, SettingsNS, currentIdxKey, 0), len(k.Keys()))
}

// Current returns the key in use and its index.
func (k *KeyRing) Current() (string, int, error) {
	keys := k.Keys()
	if len(keys) == 0 {
		return "", 0, ErrNoKeys
	}
	idx := clampIndex(store.GetOr(k.store, SettingsNS, currentIdxKey, 0), len(keys))
	return keys[idx], idx, nil
}

// Advance moves to the next key (mod len) and persists the new index.
func (k *KeyRing) Advance() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(k.Keys())
	if n == 0 {
		return 0, ErrNoKeys
	}
	next := (k.Index() + 1) % n
	if err := k.store.Set(SettingsNS, currentIdxKey, next); err != nil {
		return next, fmt.Errorf("persist key index: %w", err)
	}
	return next, nil
}

func (k *KeyRing) Add(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	keys := append(k.Stored(), key)
	return k.store.Set(SettingsNS, keysKey, keys)
}

// Select makes the key at idx (0-based) current.
func (k *KeyRing) Select(idx int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if idx < 0 || idx >= len(k.Stored()) {
		return fmt.Errorf("invalid key index: %d", idx+1)
	}
	return k.store.Set(SettingsNS, currentIdxKey, idx)
}

// Delete removes the stored key at idx (0-based), pulling the current index
// back into range if needed.
func (k *KeyRing) Delete(idx int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	keys := k.Stored()
	if idx < 0 || idx >= len(keys) {
		return fmt.Errorf("invalid key index: %d", idx+1)
	}
	keys = append(keys[:idx], keys[idx+1:]...)
	if err := k.store.Set(SettingsNS, keysKey, keys); err != nil {
		return err
	}
	cur := store.GetOr(k.store, SettingsNS, currentIdxKey, 0)
	if cur >= len(keys) {
		return k.store.Set(SettingsNS, currentIdxKey, max(0, len(keys)-1))
	}
	return nil
}

func clampIndex(idx, n int) int {
	if n == 0 || idx < 0 || idx >= n {
		return 0
	}
	return idx
}
