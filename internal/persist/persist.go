// Package persist routes the operations produced by a save to the remote
// side, falling back to the local store and the offline queue when the
// remote side cannot be reached.
package persist

import (
	"context"
	"fmt"
	"log"

	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
)

// Applier performs operations and returns the refs they touched.
type Applier interface {
	Apply(ctx context.Context, ops []record.Operation) ([]record.Ref, error)
}

// QueuedRequest is one batch of operations waiting for upload.
type QueuedRequest struct {
	ID         string
	Operations []record.Operation
	Attempts   int
}

// Queue parks operations for later upload.
type Queue interface {
	Enqueue(ctx context.Context, ops []record.Operation) (string, error)
	Pending(ctx context.Context) ([]QueuedRequest, error)
	MarkSynced(ctx context.Context, requestID string) error
	MarkFailed(ctx context.Context, requestID string, cause error) error
}

// Outcome describes where a save ended up.
type Outcome struct {
	Refs []record.Ref
	// Offline is set when the operations were applied locally and queued.
	Offline   bool
	RequestID string
}

// Router is the Applier used by screens. Online saves go to remote and
// are mirrored into local; offline saves are applied to local and queued.
type Router struct {
	remote Applier
	local  Applier
	queue  Queue
	option query.RequestOption
}

// NewRouter creates a router. remote may be nil for offline-only setups,
// in which case every save is queued.
func NewRouter(remote, local Applier, queue Queue, option query.RequestOption) *Router {
	return &Router{remote: remote, local: local, queue: queue, option: option}
}

// Save applies ops under the router's request option.
func (r *Router) Save(ctx context.Context, ops []record.Operation) (Outcome, error) {
	if len(ops) == 0 {
		return Outcome{}, nil
	}
	if r.option == query.Offline || r.remote == nil {
		if r.option == query.Online {
			return Outcome{}, query.ErrNoRemote
		}
		return r.saveOffline(ctx, ops)
	}

	refs, err := r.remote.Apply(ctx, ops)
	if err != nil {
		if query.IsConnectivity(err) && r.option.FallsBackToLocal() {
			log.Printf("persist: remote unreachable, queueing %d operations: %v", len(ops), err)
			return r.saveOffline(ctx, ops)
		}
		return Outcome{}, fmt.Errorf("remote apply: %w", err)
	}
	if r.local != nil {
		if _, err := r.local.Apply(ctx, ops); err != nil {
			log.Printf("persist: mirroring %d operations locally: %v", len(ops), err)
		}
	}
	return Outcome{Refs: refs}, nil
}

// Apply implements Applier on top of Save.
func (r *Router) Apply(ctx context.Context, ops []record.Operation) ([]record.Ref, error) {
	out, err := r.Save(ctx, ops)
	return out.Refs, err
}

func (r *Router) saveOffline(ctx context.Context, ops []record.Operation) (Outcome, error) {
	if r.local == nil || r.queue == nil {
		return Outcome{}, fmt.Errorf("offline save: %w", query.ErrNoRemote)
	}
	refs, err := r.local.Apply(ctx, ops)
	if err != nil {
		return Outcome{}, fmt.Errorf("local apply: %w", err)
	}
	id, err := r.queue.Enqueue(ctx, ops)
	if err != nil {
		return Outcome{}, fmt.Errorf("queueing offline request: %w", err)
	}
	return Outcome{Refs: refs, Offline: true, RequestID: id}, nil
}
