package controller

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// DiffOptions parameterise DiffChildren.
type DiffOptions struct {
	Parent       record.Ref
	ParentNew    bool
	ParentValues *value.Map
	LinkName     string
	// UserChangesOnly ignores programmatic defaulting on existing children.
	UserChangesOnly bool
	// CreateTemplate adds auxiliary records to every create.
	CreateTemplate *spec.FilterSpec
	// KeyField, when set, is the only field that makes a new child
	// worth creating.
	KeyField string
	KeyReuse KeyReusePolicy
}

// DiffChildren turns child edit contexts into persistence operations:
// deletes for existing children marked deleted, creates for new children
// carrying data, updates with only the changed fields for edited existing
// children. It does not mutate the children, so repeated calls without
// edits in between return the same operations.
func DiffChildren(children []*edit.ChildContext, opts DiffOptions) []record.Operation {
	var ops []record.Operation
	ordinal := 0
	for _, child := range children {
		switch {
		case child.DeleteRequested():
			if !child.New {
				ops = append(ops, record.Operation{Kind: record.OpDelete, Ref: child.Ref})
			}
		case child.New:
			if !qualifiesForCreate(child, opts.KeyField) {
				continue
			}
			n := ordinal
			ordinal++
			if opts.KeyReuse != nil {
				op, reused := opts.KeyReuse.Apply(KeyReuseInput{
					Parent:       opts.Parent,
					ParentNew:    opts.ParentNew,
					ParentValues: opts.ParentValues,
					Child:        child,
					Ordinal:      n,
				})
				if reused {
					if len(op.Fields) > 0 {
						ops = append(ops, op)
					}
					continue
				}
			}
			ops = append(ops, createOps(child, opts)...)
		default:
			changes := child.ChangedFields(opts.UserChangesOnly)
			links := child.ChangedLinks()
			if len(changes) == 0 && len(links) == 0 {
				continue
			}
			ops = append(ops, record.Operation{
				Kind:   record.OpUpdate,
				Ref:    child.Ref,
				Fields: changes,
				Links:  append([]record.Link(nil), links...),
			})
		}
	}
	return ops
}

func qualifiesForCreate(child *edit.ChildContext, keyField string) bool {
	if keyField != "" {
		fc := child.Field(keyField)
		return fc != nil && !fc.Empty()
	}
	return child.HasNonEmptyField() || len(child.ChangedLinks()) > 0
}

func createOps(child *edit.ChildContext, opts DiffOptions) []record.Operation {
	op := record.Operation{
		Kind:   record.OpCreate,
		Ref:    child.Ref,
		Fields: child.Values(),
		Links:  append([]record.Link(nil), child.ChangedLinks()...),
	}
	if !opts.Parent.IsZero() {
		op.Parent = &record.Link{Name: opts.LinkName, Target: opts.Parent}
	}
	ops := []record.Operation{op}
	if opts.CreateTemplate == nil {
		return ops
	}
	for i, tr := range opts.CreateTemplate.Records {
		// Aux ids derive from the child id so repeated diffs agree.
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", child.Ref, i)))
		names := make([]string, 0, len(tr.Values))
		for k := range tr.Values {
			names = append(names, k)
		}
		sort.Strings(names)
		fields := make([]record.FieldChange, 0, len(names))
		for _, k := range names {
			fields = append(fields, record.FieldChange{Field: k, New: tr.Values[k]})
		}
		ops = append(ops, record.Operation{
			Kind:   record.OpCreate,
			Ref:    record.Ref{InfoArea: tr.InfoArea, RecordID: id.String()},
			Fields: fields,
			Parent: &record.Link{Target: child.Ref},
			Aux:    true,
		})
	}
	return ops
}
