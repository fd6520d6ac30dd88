package controller

import (
	"context"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// DetailController renders the fields of one record. In view mode it
// displays the bound row; in the edit modes it builds the root edit page.
type DetailController struct {
	Base
	fields  *fieldPipeline
	initial *value.Map

	page    *edit.Page
	editing *editBinding
	tracker *MustFieldTracker
}

// NewDetailController creates a detail controller for tab.
func NewDetailController(deps Deps, tab *spec.TabSpec, mode Mode) *DetailController {
	c := &DetailController{fields: newFieldPipeline(tab, deps.Specs)}
	c.init(c, c, deps, tab, mode)
	return c
}

// SetInitialValues sets values that override the bound ones when the
// edit page is built.
func (c *DetailController) SetInitialValues(values *value.Map) { c.initial = values }

func (c *DetailController) bind(ctx context.Context, bd binding) {
	c.page, c.editing, c.tracker = nil, nil, nil
	if !c.mode.Editing() {
		fields := c.fields.viewFields(sourceOf(bd))
		if len(fields) == 0 {
			c.empty()
			return
		}
		g := newTabGroup(group.KindDetail, c.tab, boundRef(bd))
		g.Fields = fields
		c.finish(g)
		return
	}
	c.bindEdit(ctx, bd)
}

func (c *DetailController) bindEdit(ctx context.Context, bd binding) {
	isNew := c.mode == ModeNew
	ref := boundRef(bd)
	if ref.InfoArea == "" {
		ref.InfoArea = c.tab.InfoArea
	}
	if isNew && ref.RecordID == "" {
		ref.RecordID = uuid.New().String()
	}

	in := editInput{isNew: isNew, initial: value.NewMap()}
	if isNew {
		// A new record starts blank; whatever it was bound to seeds it.
		if bd.mode == bindRow && bd.row != nil {
			in.initial.Merge(value.FromStrings(bd.row.Values), true)
		} else {
			in.initial.Merge(bd.values, true)
		}
	} else {
		in.src = sourceOf(bd)
		if c.deps.Offline != nil && ref.RecordID != "" {
			if row, ok := c.deps.Offline.OfflineRecord(ctx, ref); ok {
				in.offline = row
			}
		}
	}
	in.initial.Merge(c.initial, true)

	page := edit.NewPage(ref, isNew)
	eb, err := c.fields.editFields(in, page.AddField)
	if err != nil {
		c.fail(err)
		return
	}
	tracker := NewMustFieldTracker(c.tab.SignalEveryChange)
	for _, fc := range eb.contexts {
		if fc.Spec.Attributes.Must && !fc.Inert {
			tracker.Track(fc.Name, fc.Empty())
		}
		fc.OnSourceChanged = func(dep, _ *edit.FieldContext) {
			c.valueChanged(value.F(dep.Name, dep.Value()))
		}
	}
	c.page, c.editing, c.tracker = page, eb, tracker

	g := newTabGroup(group.KindEdit, c.tab, ref)
	g.Fields = eb.fields
	c.finish(g)
}

// Page returns the root edit page, or nil outside the edit modes.
func (c *DetailController) Page() *edit.Page { return c.page }

// EditContexts returns every context of the page, inert ones included.
func (c *DetailController) EditContexts() []*edit.FieldContext {
	if c.editing == nil {
		return nil
	}
	return c.editing.contexts
}

// MustFieldsFilled reports whether every required field has a value.
func (c *DetailController) MustFieldsFilled() bool {
	return c.tracker == nil || c.tracker.AllFilled()
}

// SetFieldValue applies a user edit. It reports whether the value moved.
func (c *DetailController) SetFieldValue(field, v string) (bool, error) {
	if c.editing == nil {
		return false, ErrNotEditing
	}
	fc := c.editing.context(field)
	if fc == nil || fc.Inert {
		return false, ErrUnknownField
	}
	if fc.ReadOnly {
		return false, ErrReadOnlyField
	}
	if !fc.SetValue(v) {
		return false, nil
	}
	c.fields.refresh(c.editing.widgets[field])
	if c.tracker.Update(field, fc.Empty()) {
		c.valueChanged(value.F(field, v))
	}
	return true, nil
}

// Values returns the current values of the page.
func (c *DetailController) Values() *value.Map {
	out := value.NewMap()
	if c.page == nil {
		return out
	}
	for _, fc := range c.page.Fields() {
		out.Set(fc.Name, fc.Value())
	}
	return out
}

// Violations validates the page-level fields.
func (c *DetailController) Violations(_ *edit.Page) []edit.Violation {
	if c.page == nil {
		return nil
	}
	return c.page.Violations()
}

// ChangedRecord returns the operation persisting the page: a create with
// every non-empty value for new records, an update with the changed
// fields otherwise.
func (c *DetailController) ChangedRecord() (record.Operation, bool) {
	if c.page == nil {
		return record.Operation{}, false
	}
	var fields []record.FieldChange
	for _, fc := range c.page.Fields() {
		switch {
		case c.page.New && !fc.Empty():
			fields = append(fields, record.FieldChange{Field: fc.Name, New: fc.Value()})
		case !c.page.New && fc.Changed():
			fields = append(fields, record.FieldChange{Field: fc.Name, Old: fc.Original(), New: fc.Value()})
		}
	}
	if len(fields) == 0 {
		return record.Operation{}, false
	}
	kind := record.OpUpdate
	if c.page.New {
		kind = record.OpCreate
	}
	return record.Operation{Kind: kind, Ref: c.page.Ref, Fields: fields}, true
}
