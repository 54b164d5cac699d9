// Package store persists small pieces of bot state (settings, key rings,
// chat history, media slots) addressed by a namespace and a key.
package store

import (
	"encoding/json"
	"fmt"
)

// Store is a last-writer-wins key-value store. Values are JSON encoded, so
// numbers, strings, slices and maps all round-trip.
type Store interface {
	// Get decodes the value stored under ns/key into dst and reports whether
	// the key existed.
	Get(ns, key string, dst any) (bool, error)
	Set(ns, key string, value any) error
	Remove(ns, key string) error
	Close() error
}

// GetOr returns the value stored under ns/key, or def when the key is missing
// or cannot be decoded as T.
func GetOr[T any](s Store, ns, key string, def T) T {
	var v T
	ok, err := s.Get(ns, key, &v)
	if err != nil || !ok {
		return def
	}
	return v
}

func decode(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
