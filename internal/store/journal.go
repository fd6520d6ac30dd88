package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/record"
)

// weightOrder ranks entry weights, most significant first.
var weightOrder = map[string]int{
	"major": 1,
	"minor": 2,
	"info":  3,
}

// JournalOptions filter journal reads.
type JournalOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string
	// MinWeight keeps entries at least this significant.
	MinWeight string
	Limit     int
	// Cursor is the opaque value returned as next cursor by a previous read.
	Cursor string
}

var journalColumns = []string{
	"event_id", "event_type", "occurred_at", "screen_id", "record_area",
	"record_id", "summary", "category", "weight", "payload",
}

// WriteEntries implements event.Journal. Re-writing an entry is a no-op.
func (s *Store) WriteEntries(ctx context.Context, entries []event.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := s.sb.Insert(tableJournal).Columns(journalColumns...)
	for _, e := range entries {
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.ScreenID, e.Record.InfoArea,
			e.Record.RecordID, e.Summary, e.Category, e.Weight, payload,
		)
	}
	ins.OnConflict(
		entsql.ConflictColumns("record_area", "record_id", "occurred_at", "event_id"),
		entsql.DoNothing(),
	)
	if err := exec(ctx, s.db, ins); err != nil {
		return fmt.Errorf("writing journal entries: %w", err)
	}
	return nil
}

// QueryByRecord returns the newest entries indexed under ref, a cursor for
// the next page (empty on the last page) and the total number of matches.
func (s *Store) QueryByRecord(ctx context.Context, ref record.Ref, opts JournalOptions) ([]event.Entry, string, int, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 100
	}
	preds := []*entsql.Predicate{
		entsql.EQ("record_area", ref.InfoArea),
		entsql.EQ("record_id", ref.RecordID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		cats := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = c
		}
		preds = append(preds, entsql.In("category", cats...))
	}
	if rank, ok := weightOrder[opts.MinWeight]; ok && opts.MinWeight != "info" {
		var weights []any
		for w, r := range weightOrder {
			if r <= rank {
				weights = append(weights, w)
			}
		}
		preds = append(preds, entsql.In("weight", weights...))
	}
	where := entsql.And(preds...)

	var total int
	countStmt, countArgs := s.sb.Select().From(s.sb.Table(tableJournal)).Where(where).Count().Query()
	if err := s.db.QueryRowContext(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, "", 0, fmt.Errorf("counting journal entries: %w", err)
	}

	page := where
	if opts.Cursor != "" {
		// The cursor is the occurred_at of the last entry returned.
		if n, err := strconv.ParseInt(opts.Cursor, 10, 64); err == nil {
			page = entsql.And(where, entsql.LT("occurred_at", n))
		}
	}
	stmt, args := s.sb.Select(journalColumns...).
		From(s.sb.Table(tableJournal)).
		Where(page).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(opts.Limit + 1).
		Query()
	entries, err := s.scanEntries(ctx, stmt, args)
	if err != nil {
		return nil, "", 0, err
	}

	var next string
	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
		next = strconv.FormatInt(entries[len(entries)-1].OccurredAt.UnixNano(), 10)
	}
	return entries, next, total, nil
}

// Search returns the newest entries whose summary contains text, case
// insensitively.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]event.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	stmt, args := s.sb.Select(journalColumns...).
		From(s.sb.Table(tableJournal)).
		Where(entsql.ContainsFold("summary", text)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit).
		Query()
	return s.scanEntries(ctx, stmt, args)
}

func (s *Store) scanEntries(ctx context.Context, stmt string, args []any) ([]event.Entry, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	var entries []event.Entry
	for rows.Next() {
		var e event.Entry
		var at int64
		var payload sql.NullString
		err := rows.Scan(
			&e.EventID, &e.EventType, &at, &e.ScreenID, &e.Record.InfoArea,
			&e.Record.RecordID, &e.Summary, &e.Category, &e.Weight, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, at)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
