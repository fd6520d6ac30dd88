package query

import (
	"context"
	"sort"
	"sync"

	"github.com/matthewbaird/recordview/internal/record"
)

// MemorySource implements Source over in-memory rows.
// Intended for demos and tests that need no database.
type MemorySource struct {
	mu    sync.RWMutex
	rows  []*record.Row
	fail  error
	finds int
}

// NewMemorySource creates a source holding the given rows.
func NewMemorySource(rows ...*record.Row) *MemorySource {
	s := &MemorySource{}
	s.Put(rows...)
	return s
}

// Put adds or replaces rows by ref.
func (s *MemorySource) Put(rows ...*record.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		replaced := false
		for i, existing := range s.rows {
			if existing.Ref == r.Ref {
				s.rows[i] = r.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			s.rows = append(s.rows, r.Clone())
		}
	}
}

// Delete removes a row by ref.
func (s *MemorySource) Delete(ref record.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.Ref == ref {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return
		}
	}
}

// FailWith makes every subsequent call return err; nil clears it.
func (s *MemorySource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Finds returns how many Find calls were made.
func (s *MemorySource) Finds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finds
}

func (s *MemorySource) Find(_ context.Context, q Query) (*ResultSet, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}

	matched := s.match(q)
	if q.MaxResults > 0 && len(matched) > q.MaxResults {
		matched = matched[:q.MaxResults]
	}
	return &ResultSet{Rows: matched}, nil
}

func (s *MemorySource) Count(_ context.Context, q Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return 0, s.fail
	}
	return len(s.match(q)), nil
}

func (s *MemorySource) match(q Query) []*record.Row {
	var matched []*record.Row
	for _, r := range s.rows {
		if q.MatchesRow(r) {
			matched = append(matched, r.Clone())
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Ref.RecordID < matched[j].Ref.RecordID
	})
	return matched
}
