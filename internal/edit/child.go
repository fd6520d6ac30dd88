package edit

import (
	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
)

// ChildContext is the edit state of one repeatable child record.
type ChildContext struct {
	ID  string
	Ref record.Ref
	New bool

	// Group is the live presentation node for this child.
	Group *group.Group

	deleteRequested bool
	fields          []*FieldContext
	byName          map[string]*FieldContext
	changedLinks    []record.Link
}

// NewChildContext creates a child context. New children get a fresh
// record id so repeated diffs produce the same create operation.
func NewChildContext(ref record.Ref, isNew bool) *ChildContext {
	if isNew && ref.RecordID == "" {
		ref.RecordID = uuid.New().String()
	}
	return &ChildContext{
		ID:     uuid.New().String(),
		Ref:    ref,
		New:    isNew,
		byName: make(map[string]*FieldContext),
	}
}

func (c *ChildContext) OwnerID() string { return c.ID }

// AddField attaches a field context to this child.
func (c *ChildContext) AddField(fc *FieldContext) error {
	if err := fc.attach(c); err != nil {
		return err
	}
	if _, exists := c.byName[fc.Name]; !exists {
		c.fields = append(c.fields, fc)
	}
	c.byName[fc.Name] = fc
	return nil
}

// Field returns the context for name, or nil.
func (c *ChildContext) Field(name string) *FieldContext { return c.byName[name] }

// Fields returns the contexts in spec order.
func (c *ChildContext) Fields() []*FieldContext { return c.fields }

// MarkDeleted requests deletion of the child.
func (c *ChildContext) MarkDeleted() { c.deleteRequested = true }

// DeleteRequested reports whether deletion was requested.
func (c *ChildContext) DeleteRequested() bool { return c.deleteRequested }

// SetLink records a changed link, replacing one with the same name and
// target area.
func (c *ChildContext) SetLink(l record.Link) {
	for i, existing := range c.changedLinks {
		if existing.Name == l.Name && existing.Target.InfoArea == l.Target.InfoArea {
			c.changedLinks[i] = l
			return
		}
	}
	c.changedLinks = append(c.changedLinks, l)
}

// ChangedLinks returns the links set on this child.
func (c *ChildContext) ChangedLinks() []record.Link { return c.changedLinks }

// HasNonEmptyField reports whether any non-inert field carries a value.
func (c *ChildContext) HasNonEmptyField() bool {
	for _, f := range c.fields {
		if !f.Empty() {
			return true
		}
	}
	return false
}

// ChangedFields returns before/after pairs of the changed fields. With
// userOnly set, programmatic substitutions are ignored.
func (c *ChildContext) ChangedFields(userOnly bool) []record.FieldChange {
	var out []record.FieldChange
	for _, f := range c.fields {
		if !f.Changed() {
			continue
		}
		if userOnly && !f.UserChanged() {
			continue
		}
		out = append(out, record.FieldChange{Field: f.Name, Old: f.Original(), New: f.Value()})
	}
	return out
}

// Values returns the non-empty current values.
func (c *ChildContext) Values() []record.FieldChange {
	var out []record.FieldChange
	for _, f := range c.fields {
		if f.Empty() {
			continue
		}
		out = append(out, record.FieldChange{Field: f.Name, New: f.Value()})
	}
	return out
}
