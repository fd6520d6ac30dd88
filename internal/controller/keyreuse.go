package controller

import (
	"sort"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/value"
)

// KeyReuseInput describes one qualifying new child during a diff.
type KeyReuseInput struct {
	Parent       record.Ref
	ParentNew    bool
	ParentValues *value.Map
	Child        *edit.ChildContext
	// Ordinal counts the qualifying new children before this one.
	Ordinal int
}

// KeyReusePolicy decides whether a new child is persisted by writing its
// key fields onto the parent instead of creating a record of its own.
// When Apply reports true the child produces no create; the returned
// operation is emitted only if it carries fields.
type KeyReusePolicy interface {
	Name() string
	Apply(in KeyReuseInput) (record.Operation, bool)
}

// NoKeyReuse creates every qualifying child.
type NoKeyReuse struct{}

func (NoKeyReuse) Name() string { return "none" }

func (NoKeyReuse) Apply(KeyReuseInput) (record.Operation, bool) {
	return record.Operation{}, false
}

// FirstChildKeyReuse folds the first qualifying new child of a new parent
// into the parent. Fields maps child fields to parent fields. The child is
// folded only when every value it carries is mapped, it sets no links,
// and no mapped parent field already holds a different value.
type FirstChildKeyReuse struct {
	Fields map[string]string
}

func (FirstChildKeyReuse) Name() string { return "first_child" }

func (p FirstChildKeyReuse) Apply(in KeyReuseInput) (record.Operation, bool) {
	if in.Ordinal != 0 || !in.ParentNew || in.Parent.IsZero() || len(p.Fields) == 0 || in.Child == nil {
		return record.Operation{}, false
	}
	if len(in.Child.ChangedLinks()) > 0 {
		return record.Operation{}, false
	}
	for _, fc := range in.Child.Fields() {
		if _, mapped := p.Fields[fc.Name]; !mapped && !fc.Empty() {
			return record.Operation{}, false
		}
	}

	childFields := make([]string, 0, len(p.Fields))
	for cf := range p.Fields {
		childFields = append(childFields, cf)
	}
	sort.Strings(childFields)

	var fields []record.FieldChange
	for _, cf := range childFields {
		fc := in.Child.Field(cf)
		if fc == nil || fc.Empty() {
			continue
		}
		pf := p.Fields[cf]
		switch pv := in.ParentValues.Value(pf); {
		case pv == "":
			fields = append(fields, record.FieldChange{Field: pf, New: fc.Value()})
		case pv != fc.Value():
			return record.Operation{}, false
		}
	}
	return record.Operation{Kind: record.OpUpdate, Ref: in.Parent, Fields: fields}, true
}
