// Package queue serialises outbound chat operations through a single worker
// so concurrent handlers never issue overlapping sends.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gchat/util"

	"github.com/amarnathcjd/gogram/telegram"
)

const (
	DefaultPace     = 2100 * time.Millisecond
	DefaultFloodPad = time.Second
)

// FloodError asks the worker to wait before retrying an action.
type FloodError struct {
	Wait time.Duration
}

func (e *FloodError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// FloodWait extracts the wait duration from a rate-limit error.
func FloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var fe *FloodError
	if errors.As(err, &fe) {
		return fe.Wait, true
	}
	if secs := telegram.GetFloodWait(err); secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

type Option func(*Queue)

// WithPace sets the delay inserted after every processed action.
func WithPace(d time.Duration) Option {
	return func(q *Queue) { q.pace = d }
}

// WithFloodPad sets the extra time slept on top of a flood wait.
func WithFloodPad(d time.Duration) Option {
	return func(q *Queue) { q.floodPad = d }
}

// WithNotifier sets the operator channel. Its errors are ignored.
func WithNotifier(fn func(text string) error) Option {
	return func(q *Queue) { q.notify = fn }
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) { q.sleep = fn }
}

type Queue struct {
	sender   Sender
	notify   func(text string) error
	sleep    func(ctx context.Context, d time.Duration) error
	pace     time.Duration
	floodPad time.Duration

	mu      sync.Mutex
	items   []Action
	wake    chan struct{}
	started bool
	done    chan struct{}
}

func New(sender Sender, opts ...Option) *Queue {
	q := &Queue{
		sender:   sender,
		sleep:    util.Sleep,
		pace:     DefaultPace,
		floodPad: DefaultFloodPad,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker. Calls after the first are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.startLocked(ctx)
}

func (q *Queue) startLocked(ctx context.Context) {
	if q.started {
		return
	}
	q.started = true
	go q.run(ctx)
	log.Printf("[QUEUE] worker started (pace %s)", q.pace)
}

// Running reports whether the worker has been started and has not exited.
func (q *Queue) Running() bool {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-q.done:
		return false
	default:
		return true
	}
}

// Done is closed when the worker exits.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Enqueue appends a to the tail of the queue and returns immediately. The
// worker is started with a background context if Start was never called.
func (q *Queue) Enqueue(a Action) {
	if a == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, a)
	q.startLocked(context.Background())
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		a, ok := q.next(ctx)
		if !ok {
			log.Printf("[QUEUE] worker stopped: %v", ctx.Err())
			return
		}
		q.process(ctx, a)
		if err := q.sleep(ctx, q.pace); err != nil {
			log.Printf("[QUEUE] worker stopped: %v", err)
			return
		}
	}
}

func (q *Queue) next(ctx context.Context) (Action, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			a := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return a, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *Queue) process(ctx context.Context, a Action) {
	defer util.RemoveFile(cleanupPath(a))

	err := q.dispatch(a)
	if err == nil {
		return
	}
	if wait, ok := FloodWait(err); ok {
		log.Printf("[QUEUE] %s flood wait %s", a.actionKind(), wait)
		q.notifyf("FloodWait: sleeping %ds", int(wait/time.Second))
		if q.sleep(ctx, wait+q.floodPad) != nil {
			return
		}
		if err = q.dispatch(a); err == nil {
			return
		}
	}
	log.Printf("[QUEUE] %s dropped: %v", a.actionKind(), err)
	q.notifyf("Reply queue error:\n%v", err)
}

func (q *Queue) dispatch(a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", a.actionKind(), r)
		}
	}()

	switch a := a.(type) {
	case SendText:
		return q.sender.SendText(a)
	case EditText:
		return q.sender.EditText(a)
	case DeleteMessages:
		return q.sender.DeleteMessages(a)
	case SendPhoto:
		return q.sender.SendPhoto(a)
	case SendVideo:
		return q.sender.SendVideo(a)
	case SendVoice:
		return q.sender.SendVoice(a)
	case SendDocument:
		return q.sender.SendDocument(a)
	case SendAlbum:
		return q.sender.SendAlbum(a)
	case CopyMessage:
		return q.sender.CopyMessage(a)
	}
	return fmt.Errorf("unknown action %T", a)
}

func (q *Queue) notifyf(format string, args ...any) {
	if q.notify == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = q.notify(fmt.Sprintf(format, args...))
}
