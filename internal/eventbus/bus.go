// Package eventbus provides the single logical thread that owns screens and
// their controllers, plus an in-process pub/sub bus for domain events.
//
// Continuations posted with Post run one at a time in FIFO order, either on
// the goroutine started by Start or inline through RunPending/RunUntil.
// Published events are dispatched on the same thread, so subscribers never
// run concurrently with controller code.
package eventbus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/event"
)

// ErrStopped is returned by Do once the bus has been stopped.
var ErrStopped = errors.New("eventbus: stopped")

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is an unbounded FIFO of continuations with an event fan-out on top.
type Bus struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	started bool
	stopped bool

	subMu       sync.RWMutex
	subscribers []namedHandler

	stop chan struct{}
	done chan struct{}
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates an idle Bus.
func New() *Bus {
	return &Bus{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe registers a named handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Post enqueues fn. It never blocks and is safe from any goroutine.
// Continuations posted after Stop are dropped.
func (b *Bus) Post(fn func()) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		log.Printf("eventbus: stopped, dropping continuation")
		return
	}
	b.queue = append(b.queue, fn)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Publish schedules evt for dispatch to every subscriber.
func (b *Bus) Publish(ctx context.Context, evt event.DomainEvent) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	b.Post(func() { b.dispatch(ctx, evt) })
}

// Pending returns the number of queued continuations.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// RunPending runs queued continuations on the calling goroutine until the
// queue is empty, including ones posted while running. It returns how many
// ran. It must not be used while the Start goroutine is active.
func (b *Bus) RunPending() int {
	n := 0
	for {
		fn, ok := b.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// RunUntil runs continuations on the calling goroutine until cond holds or
// ctx ends. cond is checked after every drained batch.
func (b *Bus) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		b.RunPending()
		if cond() {
			return nil
		}
		select {
		case <-b.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Do runs fn on the bus thread and waits for it to finish. The Start
// goroutine must be running.
func (b *Bus) Do(ctx context.Context, fn func()) error {
	b.mu.Lock()
	stopped := b.stopped
	b.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	finished := make(chan struct{})
	b.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs continuations on a dedicated goroutine until ctx is cancelled
// or Stop is called. Queued work is drained before it exits.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	go func() {
		defer close(b.done)
		for {
			b.RunPending()
			select {
			case <-b.wake:
			case <-ctx.Done():
				b.RunPending()
				return
			case <-b.stop:
				b.RunPending()
				return
			}
		}
	}()
}

// Stop rejects further posts and waits for the Start goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	started := b.started
	b.mu.Unlock()
	close(b.stop)
	if started {
		<-b.done
	}
}

func (b *Bus) next() (func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	fn := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return fn, true
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.subMu.RLock()
	subs := b.subscribers
	b.subMu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			log.Printf("eventbus: %s handler error for %s: %v", s.name, evt.EventType, err)
		}
	}
}
