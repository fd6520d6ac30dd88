package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
)

// Find implements query.Source.
func (s *Store) Find(ctx context.Context, q query.Query) (*query.ResultSet, error) {
	rows, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.MaxResults > 0 && len(rows) > q.MaxResults {
		rows = rows[:q.MaxResults]
	}
	return &query.ResultSet{Rows: rows}, nil
}

// Count implements query.Source.
func (s *Store) Count(ctx context.Context, q query.Query) (int, error) {
	rows, err := s.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Get returns one record with its links.
func (s *Store) Get(ctx context.Context, ref record.Ref) (*record.Row, error) {
	rows, err := s.load(ctx, s.db, []*entsql.Predicate{
		entsql.EQ("info_area", ref.InfoArea),
		entsql.EQ("record_id", ref.RecordID),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) match(ctx context.Context, q query.Query) ([]*record.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	preds := []*entsql.Predicate{entsql.EQ("info_area", q.InfoArea)}
	if q.RecordID != "" {
		preds = append(preds, entsql.EQ("record_id", q.RecordID))
	}
	if q.Link != nil {
		ids, err := s.linkedIDs(ctx, q.InfoArea, q.Link)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		preds = append(preds, entsql.In("record_id", ids...))
	}
	rows, err := s.load(ctx, s.db, preds)
	if err != nil {
		return nil, err
	}
	matched := rows[:0]
	for _, r := range rows {
		if q.MatchesRow(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (s *Store) linkedIDs(ctx context.Context, infoArea string, scope *query.LinkScope) ([]any, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("info_area", infoArea),
		entsql.EQ("target_area", scope.Parent.InfoArea),
		entsql.EQ("target_id", scope.Parent.RecordID),
	}
	if scope.Name != "" {
		preds = append(preds, entsql.EQ("name", scope.Name))
	}
	stmt, args := s.sb.Select("record_id").Distinct().
		From(s.sb.Table(tableLinks)).
		Where(entsql.And(preds...)).
		Query()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// load reads records matching preds ordered by record id, then attaches
// their links with a second query. The record cursor is closed before the
// link query runs since the pool holds a single connection.
func (s *Store) load(ctx context.Context, q querier, preds []*entsql.Predicate) ([]*record.Row, error) {
	stmt, args := s.sb.Select("info_area", "record_id", "data").
		From(s.sb.Table(tableRecords)).
		Where(entsql.And(preds...)).
		OrderBy("info_area", "record_id").
		Query()
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	var out []*record.Row
	for rows.Next() {
		var ref record.Ref
		var data string
		if err := rows.Scan(&ref.InfoArea, &ref.RecordID, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		values := map[string]string{}
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding record %s: %w", ref, err)
		}
		out = append(out, record.NewRow(ref, values))
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	if err := s.attachLinks(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachLinks(ctx context.Context, q querier, rows []*record.Row) error {
	byRef := make(map[record.Ref]*record.Row, len(rows))
	areas := map[string][]any{}
	for _, r := range rows {
		byRef[r.Ref] = r
		areas[r.Ref.InfoArea] = append(areas[r.Ref.InfoArea], r.Ref.RecordID)
	}
	names := make([]string, 0, len(areas))
	for area := range areas {
		names = append(names, area)
	}
	sort.Strings(names)
	for _, area := range names {
		stmt, args := s.sb.Select("info_area", "record_id", "name", "target_area", "target_id").
			From(s.sb.Table(tableLinks)).
			Where(entsql.And(entsql.EQ("info_area", area), entsql.In("record_id", areas[area]...))).
			OrderBy("record_id", "name", "target_area").
			Query()
		lrows, err := q.QueryContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("querying links: %w", err)
		}
		for lrows.Next() {
			var ref record.Ref
			var l record.Link
			if err := lrows.Scan(&ref.InfoArea, &ref.RecordID, &l.Name, &l.Target.InfoArea, &l.Target.RecordID); err != nil {
				lrows.Close()
				return fmt.Errorf("scanning link: %w", err)
			}
			if r, ok := byRef[ref]; ok {
				r.Links = append(r.Links, l)
			}
		}
		err = lrows.Err()
		lrows.Close()
		if err != nil {
			return fmt.Errorf("reading links: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces rows together with their links.
func (s *Store) Put(ctx context.Context, rows ...*record.Row) error {
	return s.inTx(ctx, func(q querier) error {
		for _, r := range rows {
			if err := s.upsert(ctx, q, r.Ref, r.Values); err != nil {
				return err
			}
			if err := exec(ctx, q, s.sb.Delete(tableLinks).Where(refPred(r.Ref))); err != nil {
				return fmt.Errorf("clearing links of %s: %w", r.Ref, err)
			}
			if err := s.putLinks(ctx, q, r.Ref, r.Links); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply performs operations against the local records in one transaction.
// Creates upsert the record and link it to its parent, updates merge the
// changed fields into the stored values, deletes drop the record and its
// outgoing links.
func (s *Store) Apply(ctx context.Context, ops []record.Operation) ([]record.Ref, error) {
	refs := make([]record.Ref, 0, len(ops))
	err := s.inTx(ctx, func(q querier) error {
		for _, op := range ops {
			if err := s.applyOne(ctx, q, op); err != nil {
				return fmt.Errorf("%s %s: %w", op.Kind, op.Ref, err)
			}
			refs = append(refs, op.Ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Store) applyOne(ctx context.Context, q querier, op record.Operation) error {
	if op.Ref.InfoArea == "" || op.Ref.RecordID == "" {
		return errors.New("operation without record ref")
	}
	switch op.Kind {
	case record.OpCreate:
		if err := s.upsert(ctx, q, op.Ref, op.Values()); err != nil {
			return err
		}
		links := append([]record.Link(nil), op.Links...)
		if op.Parent != nil {
			links = append(links, *op.Parent)
		}
		return s.putLinks(ctx, q, op.Ref, links)
	case record.OpUpdate:
		rows, err := s.load(ctx, q, []*entsql.Predicate{refPred(op.Ref)})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrNotFound
		}
		values := rows[0].Values
		for _, fc := range op.Fields {
			values[fc.Field] = fc.New
		}
		if err := s.upsert(ctx, q, op.Ref, values); err != nil {
			return err
		}
		return s.putLinks(ctx, q, op.Ref, op.Links)
	case record.OpDelete:
		if err := exec(ctx, q, s.sb.Delete(tableLinks).Where(refPred(op.Ref))); err != nil {
			return fmt.Errorf("deleting links: %w", err)
		}
		if err := exec(ctx, q, s.sb.Delete(tableRecords).Where(refPred(op.Ref))); err != nil {
			return fmt.Errorf("deleting record: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (s *Store) upsert(ctx context.Context, q querier, ref record.Ref, values map[string]string) error {
	if values == nil {
		values = map[string]string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", ref, err)
	}
	ins := s.sb.Insert(tableRecords).
		Columns("info_area", "record_id", "data", "updated_at").
		Values(ref.InfoArea, ref.RecordID, string(data), time.Now().UnixNano()).
		OnConflict(
			entsql.ConflictColumns("info_area", "record_id"),
			entsql.ResolveWithNewValues(),
		)
	if err := exec(ctx, q, ins); err != nil {
		return fmt.Errorf("writing record %s: %w", ref, err)
	}
	return nil
}

// putLinks replaces links by (name, target area); a link to the same
// area under the same name points at one record only.
func (s *Store) putLinks(ctx context.Context, q querier, ref record.Ref, links []record.Link) error {
	if len(links) == 0 {
		return nil
	}
	ins := s.sb.Insert(tableLinks).
		Columns("info_area", "record_id", "name", "target_area", "target_id")
	for _, l := range links {
		ins.Values(ref.InfoArea, ref.RecordID, l.Name, l.Target.InfoArea, l.Target.RecordID)
	}
	ins.OnConflict(
		entsql.ConflictColumns("info_area", "record_id", "name", "target_area"),
		entsql.ResolveWithNewValues(),
	)
	if err := exec(ctx, q, ins); err != nil {
		return fmt.Errorf("writing links of %s: %w", ref, err)
	}
	return nil
}

func refPred(ref record.Ref) *entsql.Predicate {
	return entsql.And(entsql.EQ("info_area", ref.InfoArea), entsql.EQ("record_id", ref.RecordID))
}

