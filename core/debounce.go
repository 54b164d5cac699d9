package core

import (
	"sync"
	"time"
)

// Debouncer collects items per key and flushes them after delay. With
// reset set, every Add restarts the timer; otherwise the first Add of a
// batch fixes the flush time.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	reset   bool
	flush   func(key int64, items []T)
	pending map[int64]*batch[T]
	gen     uint64
}

type batch[T any] struct {
	items []T
	timer *time.Timer
	gen   uint64
}

func NewDebouncer[T any](delay time.Duration, reset bool, flush func(key int64, items []T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:   delay,
		reset:   reset,
		flush:   flush,
		pending: make(map[int64]*batch[T]),
	}
}

func (d *Debouncer[T]) Add(key int64, item T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.pending[key]
	if !ok {
		b = &batch[T]{}
		d.pending[key] = b
	}
	b.items = append(b.items, item)

	if ok && !d.reset {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	d.gen++
	gen := d.gen
	b.gen = gen
	b.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })
}

func (d *Debouncer[T]) fire(key int64, gen uint64) {
	d.mu.Lock()
	b, ok := d.pending[key]
	if !ok || b.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if len(b.items) > 0 {
		d.flush(key, b.items)
	}
}

// Pending reports the number of keys with an unflushed batch.
func (d *Debouncer[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
