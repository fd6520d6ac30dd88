package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ConnectivityError reports that a remote source could not be reached.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: remote unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is, or wraps, a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// ErrNoRemote is returned when a remote query is requested but the engine
// has no remote source.
var ErrNoRemote = &ConnectivityError{Op: "query", Err: errors.New("no remote source configured")}

// Source executes queries against one data store.
type Source interface {
	Find(ctx context.Context, q Query) (*ResultSet, error)
	Count(ctx context.Context, q Query) (int, error)
}

// Poster resumes a continuation on the single logical thread that owns
// the controllers.
type Poster interface {
	Post(fn func())
}

// Handler receives the completion of an asynchronous find.
type Handler func(rs *ResultSet, err error)

// CountHandler receives the completion of an asynchronous count.
type CountHandler func(n int, err error)

// Operation is the handle of an in-flight asynchronous query.
type Operation struct {
	ID     string
	Option RequestOption
	cancel context.CancelFunc
}

// Cancel stops waiting for the remote side. The handler still runs with
// the cancellation error; callers drop it by generation.
func (o *Operation) Cancel() {
	if o != nil && o.cancel != nil {
		o.cancel()
	}
}

// Engine runs queries. Local finds are synchronous; remote finds run on a
// background goroutine and their handlers are posted back to the owning
// thread, so handlers never run concurrently with controller code.
type Engine struct {
	local  Source
	remote Source
	poster Poster
	spawn  func(func())
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSpawn replaces the goroutine launcher used for remote calls.
func WithSpawn(spawn func(func())) EngineOption {
	return func(e *Engine) { e.spawn = spawn }
}

// NewEngine creates an engine. remote may be nil for offline-only setups.
func NewEngine(local, remote Source, poster Poster, opts ...EngineOption) *Engine {
	e := &Engine{
		local:  local,
		remote: remote,
		poster: poster,
		spawn:  func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasRemote reports whether a remote source is configured.
func (e *Engine) HasRemote() bool { return e.remote != nil }

// FindSync runs q against the local source.
func (e *Engine) FindSync(ctx context.Context, q Query) (*ResultSet, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if e.local == nil {
		return &ResultSet{}, nil
	}
	rs, err := e.local.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("local find %s: %w", q.InfoArea, err)
	}
	return rs, nil
}

// FindAsync runs q under opt and delivers the result through h on the
// posting thread. Offline queries use the local source; every other
// option goes remote. The policy decisions around the call (local first,
// local fallback) belong to the caller.
func (e *Engine) FindAsync(ctx context.Context, q Query, opt RequestOption, h Handler) *Operation {
	ctx, cancel := context.WithCancel(ctx)
	op := &Operation{ID: uuid.New().String(), Option: opt, cancel: cancel}
	if err := q.Validate(); err != nil {
		e.poster.Post(func() { cancel(); h(nil, err) })
		return op
	}
	src := e.remote
	if opt == Offline {
		src = e.local
	}
	if src == nil {
		e.poster.Post(func() { cancel(); h(nil, ErrNoRemote) })
		return op
	}
	e.spawn(func() {
		rs, err := src.Find(ctx, q)
		cancel()
		e.poster.Post(func() { h(rs, err) })
	})
	return op
}

// Count runs a count-only query under opt and delivers it through h.
// Local counts follow the same policy as finds: Offline stays local,
// FastestAvailable goes remote only for a zero local count, and
// connectivity failures fall back to the local count when allowed.
func (e *Engine) Count(ctx context.Context, q Query, opt RequestOption, h CountHandler) *Operation {
	op := &Operation{ID: uuid.New().String(), Option: opt}
	if err := q.Validate(); err != nil {
		e.poster.Post(func() { h(0, err) })
		return op
	}
	if opt == Offline || opt == FastestAvailable {
		n, err := e.countLocal(ctx, q)
		if opt == Offline || (err == nil && n > 0) {
			e.poster.Post(func() { h(n, err) })
			return op
		}
	}
	if e.remote == nil {
		if opt.FallsBackToLocal() {
			n, err := e.countLocal(ctx, q)
			e.poster.Post(func() { h(n, err) })
			return op
		}
		e.poster.Post(func() { h(0, ErrNoRemote) })
		return op
	}
	rctx, cancel := context.WithCancel(ctx)
	op.cancel = cancel
	e.spawn(func() {
		n, err := e.remote.Count(rctx, q)
		cancel()
		if err != nil && IsConnectivity(err) && opt.FallsBackToLocal() {
			n, err = e.countLocal(ctx, q)
		}
		e.poster.Post(func() { h(n, err) })
	})
	return op
}

func (e *Engine) countLocal(ctx context.Context, q Query) (int, error) {
	if e.local == nil {
		return 0, nil
	}
	return e.local.Count(ctx, q)
}
