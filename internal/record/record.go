// Package record defines the data rows that controllers bind to and the
// create/update/delete operations they hand to persistence.
package record

import (
	"fmt"
	"strings"
)

// Ref identifies a record by info area and record id.
type Ref struct {
	InfoArea string `json:"info_area"`
	RecordID string `json:"record_id"`
}

// IsZero reports whether the ref names no record.
func (r Ref) IsZero() bool {
	return r.InfoArea == "" && r.RecordID == ""
}

// String renders the ref as "AREA.id".
func (r Ref) String() string {
	return r.InfoArea + "." + r.RecordID
}

// ParseRef parses the "AREA.id" form produced by String.
func ParseRef(s string) (Ref, error) {
	area, id, ok := strings.Cut(s, ".")
	if !ok || area == "" || id == "" {
		return Ref{}, fmt.Errorf("invalid record ref %q", s)
	}
	return Ref{InfoArea: area, RecordID: id}, nil
}

// Link connects a record to another record under a link name.
type Link struct {
	Name   string `json:"name,omitempty"`
	Target Ref    `json:"target"`
}

// Row is one fetched record with its field values and outgoing links.
type Row struct {
	Ref    Ref               `json:"ref"`
	Values map[string]string `json:"values"`
	Links  []Link            `json:"links,omitempty"`
}

// NewRow builds a Row for ref with the given values.
func NewRow(ref Ref, values map[string]string) *Row {
	if values == nil {
		values = make(map[string]string)
	}
	return &Row{Ref: ref, Values: values}
}

// Value returns the raw value for a field or "".
func (r *Row) Value(field string) string {
	if r == nil || r.Values == nil {
		return ""
	}
	return r.Values[field]
}

// Has reports whether the row carries a value (possibly empty) for field.
func (r *Row) Has(field string) bool {
	if r == nil || r.Values == nil {
		return false
	}
	_, ok := r.Values[field]
	return ok
}

// LinkTo returns the first link targeting infoArea, optionally restricted
// to a link name.
func (r *Row) LinkTo(infoArea, name string) (Link, bool) {
	if r == nil {
		return Link{}, false
	}
	for _, l := range r.Links {
		if l.Target.InfoArea != infoArea {
			continue
		}
		if name != "" && l.Name != name {
			continue
		}
		return l, true
	}
	return Link{}, false
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	out := &Row{Ref: r.Ref, Values: make(map[string]string, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	out.Links = append(out.Links, r.Links...)
	return out
}

// OpKind is the persistence operation type.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// FieldChange carries a before/after pair for one field.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Operation is one persistable record change.
type Operation struct {
	Kind   OpKind        `json:"kind"`
	Ref    Ref           `json:"ref"`
	Fields []FieldChange `json:"fields,omitempty"`
	Links  []Link        `json:"links,omitempty"`
	// Parent is the link to the owning record for child creates.
	Parent *Link `json:"parent,omitempty"`
	// Aux marks records generated from a creation template.
	Aux bool `json:"aux,omitempty"`
}

// Field returns the change for name, if any.
func (o Operation) Field(name string) (FieldChange, bool) {
	for _, fc := range o.Fields {
		if fc.Field == name {
			return fc, true
		}
	}
	return FieldChange{}, false
}

// Values returns the new values carried by the operation.
func (o Operation) Values() map[string]string {
	out := make(map[string]string, len(o.Fields))
	for _, fc := range o.Fields {
		out[fc.Field] = fc.New
	}
	return out
}
