// Package query defines the query model consumed by query-bound
// controllers and the engine that executes it against a local source, a
// remote source, or both, under a request-option policy.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/recordview/internal/record"
)

// RequestOption is the local-versus-remote policy of a query.
type RequestOption int

const (
	// Offline runs against local data only, synchronously.
	Offline RequestOption = iota
	// FastestAvailable runs locally first and only goes remote when the
	// local result is empty.
	FastestAvailable
	// BestAvailable prefers the remote source and retries once against
	// local data on a connectivity failure.
	BestAvailable
	// Online runs against the remote source only.
	Online
)

// String returns the configuration token of the option.
func (o RequestOption) String() string {
	switch o {
	case Offline:
		return "offline"
	case FastestAvailable:
		return "fastest"
	case BestAvailable:
		return "best"
	case Online:
		return "online"
	default:
		return fmt.Sprintf("RequestOption(%d)", int(o))
	}
}

// ParseRequestOption parses a configuration token. An empty token yields
// def.
func ParseRequestOption(s string, def RequestOption) (RequestOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "offline", "local":
		return Offline, nil
	case "fastest", "fastest_available", "fastestavailable":
		return FastestAvailable, nil
	case "best", "best_available", "bestavailable":
		return BestAvailable, nil
	case "online", "remote":
		return Online, nil
	default:
		return def, fmt.Errorf("unknown request option %q", s)
	}
}

// FallsBackToLocal reports whether a connectivity failure may be answered
// from local data.
func (o RequestOption) FallsBackToLocal() bool {
	return o == BestAvailable || o == FastestAvailable
}

// Condition operators.
const (
	OpEqual    = "="
	OpNotEqual = "<>"
	OpContains = "contains"
	OpEmpty    = "empty"
	OpNotEmpty = "notempty"
)

// Condition restricts one field.
type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value,omitempty"`
}

// Matches evaluates the condition against a raw value.
func (c Condition) Matches(v string) bool {
	switch c.Op {
	case "", OpEqual:
		return v == c.Value
	case OpNotEqual:
		return v != c.Value
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case OpEmpty:
		return strings.TrimSpace(v) == ""
	case OpNotEmpty:
		return strings.TrimSpace(v) != ""
	default:
		return false
	}
}

// LinkScope restricts results to records linked to Parent.
type LinkScope struct {
	Name   string     `json:"name,omitempty"`
	Parent record.Ref `json:"parent"`
}

// Query describes one search.
type Query struct {
	InfoArea   string      `json:"info_area"`
	Conditions []Condition `json:"conditions,omitempty"`
	Link       *LinkScope  `json:"link,omitempty"`
	RecordID   string      `json:"record_id,omitempty"`
	MaxResults int         `json:"max_results,omitempty"`
}

// Validate checks the query is executable.
func (q Query) Validate() error {
	if q.InfoArea == "" {
		return errors.New("query: missing info area")
	}
	for _, c := range q.Conditions {
		if c.Field == "" {
			return errors.New("query: condition without field")
		}
		switch c.Op {
		case "", OpEqual, OpNotEqual, OpContains, OpEmpty, OpNotEmpty:
		default:
			return fmt.Errorf("query: unknown operator %q", c.Op)
		}
	}
	return nil
}

// MatchesRow evaluates the query's record, link and conditions against a
// row. MaxResults is not applied.
func (q Query) MatchesRow(row *record.Row) bool {
	if row.Ref.InfoArea != q.InfoArea {
		return false
	}
	if q.RecordID != "" && row.Ref.RecordID != q.RecordID {
		return false
	}
	if q.Link != nil {
		l, ok := row.LinkTo(q.Link.Parent.InfoArea, q.Link.Name)
		if !ok || l.Target.RecordID != q.Link.Parent.RecordID {
			return false
		}
	}
	for _, c := range q.Conditions {
		if !c.Matches(row.Value(c.Field)) {
			return false
		}
	}
	return true
}

// ResultSet is the outcome of a query.
type ResultSet struct {
	Rows []*record.Row `json:"rows"`
}

// Len returns the number of rows; nil result sets are empty.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// First returns the first row or nil.
func (rs *ResultSet) First() *record.Row {
	if rs.Len() == 0 {
		return nil
	}
	return rs.Rows[0]
}
