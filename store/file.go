package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every namespace in a single JSON document on disk. The whole
// document is rewritten on each mutation.
type File struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]json.RawMessage
}

func DefaultPath(dataDir string) string {
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".gchat")
	}
	return filepath.Join(dataDir, "db.json")
}

func OpenFile(path string) (*File, error) {
	f := &File{
		path: path,
		data: make(map[string]map[string]json.RawMessage),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		log.Printf("[STORE] %s is corrupt, starting empty: %v", path, err)
		f.data = make(map[string]map[string]json.RawMessage)
	}
	return f, nil
}

func (f *File) Get(ns, key string, dst any) (bool, error) {
	f.mu.Lock()
	raw, ok := f.data[ns][key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, decode(raw, dst)
}

func (f *File) Set(ns, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[ns] == nil {
		f.data[ns] = make(map[string]json.RawMessage)
	}
	f.data[ns][key] = raw
	return f.flushLocked()
}

func (f *File) Remove(ns, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[ns][key]; !ok {
		return nil
	}
	delete(f.data[ns], key)
	if len(f.data[ns]) == 0 {
		delete(f.data, ns)
	}
	return f.flushLocked()
}

func (f *File) Close() error { return nil }

func (f *File) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
