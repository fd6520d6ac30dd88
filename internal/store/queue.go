package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/persist"
	"github.com/matthewbaird/recordview/internal/record"
)

// Offline operation status values.
const (
	statusPending = "pending"
	statusSynced  = "synced"
	statusFailed  = "failed"
)

// maxAttempts is how often a request is retried before it is parked as
// failed.
const maxAttempts = 5

// Enqueue parks ops as one offline request and returns its id.
func (s *Store) Enqueue(ctx context.Context, ops []record.Operation) (string, error) {
	id := uuid.New().String()
	now := time.Now().UnixNano()
	err := s.inTx(ctx, func(q querier) error {
		for i, op := range ops {
			raw, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("encoding operation: %w", err)
			}
			var parent record.Ref
			if op.Parent != nil {
				parent = op.Parent.Target
			}
			ins := s.sb.Insert(tableQueue).
				Columns("request_id", "position", "kind", "info_area", "record_id",
					"parent_area", "parent_id", "op", "status", "created_at").
				Values(id, i, string(op.Kind), op.Ref.InfoArea, op.Ref.RecordID,
					parent.InfoArea, parent.RecordID, string(raw), statusPending, now)
			if err := exec(ctx, q, ins); err != nil {
				return fmt.Errorf("queueing operation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Pending returns the queued requests in the order they were enqueued.
func (s *Store) Pending(ctx context.Context) ([]persist.QueuedRequest, error) {
	stmt, args := s.sb.Select("request_id", "op", "attempts").
		From(s.sb.Table(tableQueue)).
		Where(entsql.EQ("status", statusPending)).
		OrderBy("seq").
		Query()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying offline queue: %w", err)
	}
	defer rows.Close()

	var out []persist.QueuedRequest
	index := map[string]int{}
	for rows.Next() {
		var id, raw string
		var attempts int
		if err := rows.Scan(&id, &raw, &attempts); err != nil {
			return nil, fmt.Errorf("scanning offline operation: %w", err)
		}
		var op record.Operation
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			return nil, fmt.Errorf("decoding offline operation: %w", err)
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, persist.QueuedRequest{ID: id, Attempts: attempts})
		}
		out[i].Operations = append(out[i].Operations, op)
	}
	return out, rows.Err()
}

// MarkSynced marks a request as uploaded.
func (s *Store) MarkSynced(ctx context.Context, requestID string) error {
	upd := s.sb.Update(tableQueue).
		Set("status", statusSynced).
		Where(entsql.EQ("request_id", requestID))
	if err := exec(ctx, s.db, upd); err != nil {
		return fmt.Errorf("marking %s synced: %w", requestID, err)
	}
	return nil
}

// MarkFailed records a rejected upload. The request stays pending until
// it has failed maxAttempts times.
func (s *Store) MarkFailed(ctx context.Context, requestID string, cause error) error {
	return s.inTx(ctx, func(q querier) error {
		var attempts int
		stmt, args := s.sb.Select("attempts").
			From(s.sb.Table(tableQueue)).
			Where(entsql.EQ("request_id", requestID)).
			Limit(1).
			Query()
		if err := q.QueryRowContext(ctx, stmt, args...).Scan(&attempts); err != nil {
			return fmt.Errorf("reading attempts of %s: %w", requestID, err)
		}
		attempts++
		status := statusPending
		if attempts >= maxAttempts {
			status = statusFailed
		}
		upd := s.sb.Update(tableQueue).
			Set("attempts", attempts).
			Set("status", status).
			Set("last_error", cause.Error()).
			Where(entsql.EQ("request_id", requestID))
		if err := exec(ctx, q, upd); err != nil {
			return fmt.Errorf("marking %s failed: %w", requestID, err)
		}
		return nil
	})
}

// OfflineRecord returns ref as it will look once its pending operations
// are uploaded: the stored record (if any) with queued creates and
// updates merged in order. A queued delete hides the record.
func (s *Store) OfflineRecord(ctx context.Context, ref record.Ref) (*record.Row, bool) {
	stmt, args := s.sb.Select("op").
		From(s.sb.Table(tableQueue)).
		Where(entsql.And(
			entsql.EQ("info_area", ref.InfoArea),
			entsql.EQ("record_id", ref.RecordID),
			entsql.EQ("status", statusPending),
		)).
		OrderBy("seq").
		Query()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, false
	}
	var ops []record.Operation
	for rows.Next() {
		var raw string
		var op record.Operation
		if rows.Scan(&raw) != nil || json.Unmarshal([]byte(raw), &op) != nil {
			continue
		}
		ops = append(ops, op)
	}
	rows.Close()
	if len(ops) == 0 {
		return nil, false
	}

	row, err := s.Get(ctx, ref)
	if err != nil {
		row = record.NewRow(ref, nil)
	}
	for _, op := range ops {
		switch op.Kind {
		case record.OpDelete:
			return nil, false
		default:
			for _, fc := range op.Fields {
				row.Values[fc.Field] = fc.New
			}
			row.Links = mergeLinks(row.Links, op.Links)
			if op.Parent != nil {
				row.Links = mergeLinks(row.Links, []record.Link{*op.Parent})
			}
		}
	}
	return row, true
}

// HasQueuedChildren reports whether pending creates of infoArea records
// hang off parent.
func (s *Store) HasQueuedChildren(ctx context.Context, parent record.Ref, infoArea string) bool {
	stmt, args := s.sb.Select().
		From(s.sb.Table(tableQueue)).
		Where(entsql.And(
			entsql.EQ("parent_area", parent.InfoArea),
			entsql.EQ("parent_id", parent.RecordID),
			entsql.EQ("info_area", infoArea),
			entsql.EQ("kind", string(record.OpCreate)),
			entsql.EQ("status", statusPending),
		)).
		Count().
		Query()
	var n int
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func mergeLinks(existing, add []record.Link) []record.Link {
	for _, l := range add {
		replaced := false
		for i, e := range existing {
			if e.Name == l.Name && e.Target.InfoArea == l.Target.InfoArea {
				existing[i] = l
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, l)
		}
	}
	return existing
}
