package model

import (
	"context"
	"fmt"
	"log"
	"time"

	"gchat/util"
)

// Policy bounds how hard a single call tries before giving up.
type Policy struct {
	// Attempts is the total number of calls made, at least 1.
	Attempts int
	// RotateEvery advances to the next key after this many retryable
	// failures; 0 or 1 rotates on every failure.
	RotateEvery int
	Backoff     time.Duration
}

// FilePolicy is used for replies to media sent by chat partners.
var FilePolicy = Policy{Attempts: 3, RotateEvery: 1, Backoff: 4 * time.Second}

// CommandPolicy is used for owner commands that analyse a replied-to file.
var CommandPolicy = Policy{Attempts: 3, RotateEvery: 1, Backoff: 2 * time.Second}

// ChatPolicy gives every key two chances before moving to the next one.
func ChatPolicy(keys int) Policy {
	return Policy{Attempts: 2 * max(keys, 1), RotateEvery: 2, Backoff: 4 * time.Second}
}

type Rotator struct {
	ring  *KeyRing
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRotator(ring *KeyRing) *Rotator {
	return &Rotator{ring: ring, sleep: util.Sleep}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func (r *Rotator) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Rotator {
	r.sleep = fn
	return r
}

func (r *Rotator) Ring() *KeyRing { return r.ring }

// Call runs fn with the current key. Rate-limit and credential failures
// rotate the key, back off and retry within p; any other failure is
// returned at once.
func Call[T any](ctx context.Context, r *Rotator, p Policy, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)
	rotateEvery := max(p.RotateEvery, 1)

	var lastErr error
	failures := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		key, idx, err := r.ring.Current()
		if err != nil {
			return zero, err
		}
		res, err := fn(ctx, key)
		if err == nil {
			return res, nil
		}
		kind := Classify(err)
		if !kind.Retryable() {
			return zero, err
		}
		lastErr = err
		failures++
		log.Printf("[GEMINI] key #%d %s (attempt %d/%d): %v", idx+1, kind, attempt, attempts, err)

		if failures%rotateEvery == 0 {
			if _, err := r.ring.Advance(); err != nil {
				log.Printf("[GEMINI] rotate: %v", err)
			}
		}
		if attempt == attempts {
			break
		}
		if err := r.sleep(ctx, p.Backoff); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("gemini: %d attempts failed: %w", attempts, lastErr)
}
