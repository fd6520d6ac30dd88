package persist

import (
	"context"
	"log"
	"time"

	"github.com/matthewbaird/recordview/internal/query"
)

// SyncReport summarises one upload pass.
type SyncReport struct {
	Synced  int
	Failed  int
	Pending int
}

// SyncWorker uploads queued offline requests in enqueue order.
type SyncWorker struct {
	queue  Queue
	remote Applier
}

// NewSyncWorker creates a sync worker.
func NewSyncWorker(queue Queue, remote Applier) *SyncWorker {
	return &SyncWorker{queue: queue, remote: remote}
}

// Sync uploads pending requests until one hits a connectivity failure.
// Requests the remote side rejects are marked failed and skipped so later
// requests are not blocked behind them.
func (w *SyncWorker) Sync(ctx context.Context) (SyncReport, error) {
	pending, err := w.queue.Pending(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	var rep SyncReport
	for i, req := range pending {
		if _, err := w.remote.Apply(ctx, req.Operations); err != nil {
			if query.IsConnectivity(err) {
				rep.Pending = len(pending) - i
				log.Printf("offline_sync: remote unreachable, %d requests left", rep.Pending)
				return rep, nil
			}
			log.Printf("offline_sync: request %s rejected: %v", req.ID, err)
			if err := w.queue.MarkFailed(ctx, req.ID, err); err != nil {
				return rep, err
			}
			rep.Failed++
			continue
		}
		if err := w.queue.MarkSynced(ctx, req.ID); err != nil {
			return rep, err
		}
		log.Printf("offline_sync: uploaded request %s (%d operations)", req.ID, len(req.Operations))
		rep.Synced++
	}
	return rep, nil
}

// Run syncs every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sync(ctx); err != nil {
				log.Printf("offline_sync: %v", err)
			}
		}
	}
}
