package controller

import (
	"context"
	"fmt"
	"log"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// Actions maintained on child-set groups.
const (
	ActionAddChild    = "add_child"
	ActionDeleteChild = "delete_child"
)

// ChildSetController manages an ordered, user-editable set of child records
// under one parent: the initial load, insert and delete commands, field
// edits, validation and the diff handed to persistence.
type ChildSetController struct {
	Base
	fields   *fieldPipeline
	runner   queryRunner
	keyReuse KeyReusePolicy
	keyField string
	initial  *value.Map

	parent   record.Ref
	seed     *value.Map
	children []*edit.ChildContext
	bindings map[string]*editBinding
	set      *group.Group
	tracker  *MustFieldTracker

	addEnabled    bool
	deleteEnabled bool
	minCount      int
	maxCount      int
}

// NewChildSetController creates a child-set controller for tab. PARTICIPANTS
// tabs, and tabs with the "key_reuse" option, fold the first new child
// into a new parent when key reuse fields are configured.
func NewChildSetController(deps Deps, tab *spec.TabSpec, mode Mode) *ChildSetController {
	c := &ChildSetController{
		fields:   newFieldPipeline(tab, deps.Specs),
		keyReuse: NoKeyReuse{},
		keyField: tab.KeyField,
	}
	c.init(c, c, deps, tab, mode)
	c.runner.b = &c.Base

	reuse := tab.NormalizedType() == spec.TypeParticipants
	if v, ok := tab.Options["key_reuse"].(bool); ok {
		reuse = v
	}
	if reuse && len(tab.KeyReuseFields) > 0 {
		c.keyReuse = FirstChildKeyReuse{Fields: tab.KeyReuseFields}
	}
	return c
}

// SetKeyReusePolicy replaces the key reuse policy; nil disables reuse.
func (c *ChildSetController) SetKeyReusePolicy(p KeyReusePolicy) {
	if p == nil {
		p = NoKeyReuse{}
	}
	c.keyReuse = p
}

// KeyReusePolicy returns the active policy.
func (c *ChildSetController) KeyReusePolicy() KeyReusePolicy { return c.keyReuse }

// SetInitialValues sets parent-supplied values seeded into new children.
func (c *ChildSetController) SetInitialValues(values *value.Map) { c.initial = values }

// AddRecordEnabled reports whether children may be added at all.
func (c *ChildSetController) AddRecordEnabled() bool { return c.addEnabled }

// DeleteRecordEnabled reports whether children may be deleted at all.
func (c *ChildSetController) DeleteRecordEnabled() bool { return c.deleteEnabled }

// MinCount and MaxCount are the configured bounds; zero means unbounded.
func (c *ChildSetController) MinCount() int { return c.minCount }
func (c *ChildSetController) MaxCount() int { return c.maxCount }

// ParentRef returns the parent record of the last binding.
func (c *ChildSetController) ParentRef() record.Ref { return c.parent }

// ChildContexts returns every tracked child, deleted ones included.
func (c *ChildSetController) ChildContexts() []*edit.ChildContext { return c.children }

// LiveChildren returns the children not marked for deletion.
func (c *ChildSetController) LiveChildren() []*edit.ChildContext {
	out := make([]*edit.ChildContext, 0, len(c.children))
	for _, ch := range c.children {
		if !ch.DeleteRequested() {
			out = append(out, ch)
		}
	}
	return out
}

// CanAdd reports whether the insert affordance is enabled.
func (c *ChildSetController) CanAdd() bool {
	if !c.mode.Editing() || !c.addEnabled {
		return false
	}
	return c.maxCount <= 0 || len(c.LiveChildren()) < c.maxCount
}

func (c *ChildSetController) computeEnablement() {
	parentNew := c.mode == ModeNew
	c.addEnabled = parentNew
	c.maxCount = c.tab.MaxCount
	override := c.tab.MaxUpdateCount
	if parentNew {
		override = c.tab.MaxNewCount
	}
	if override != nil {
		c.addEnabled = *override > 0
		if *override > 0 {
			c.maxCount = *override
		}
	}
	c.deleteEnabled = c.tab.DeleteEnabled == nil || *c.tab.DeleteEnabled
	c.minCount = c.tab.MinCount
	if !c.mode.Editing() {
		c.addEnabled, c.deleteEnabled = false, false
	}
}

func (c *ChildSetController) bind(ctx context.Context, bd binding) {
	c.children = nil
	c.bindings = make(map[string]*editBinding)
	c.tracker = NewMustFieldTracker(c.tab.SignalEveryChange)
	c.parent = boundRef(bd)
	c.seed = value.NewMap()
	if bd.mode == bindContext {
		c.seed.Merge(bd.values, true)
	}
	c.seed.Merge(c.initial, true)
	c.computeEnablement()

	c.set = newTabGroup(group.KindChildSet, c.tab, c.parent)
	if c.mode.Editing() {
		c.set.AddAction(&group.Action{Name: ActionAddChild, Label: "Add", Enabled: false})
	}

	parentNew := c.mode == ModeNew || c.parent.IsZero()
	queued := parentNew && c.offlineQueued(ctx)
	if parentNew && !queued {
		if c.mode.Editing() && c.addEnabled {
			if _, err := c.insert(ctx, nil); err != nil {
				c.fail(err)
				return
			}
		}
		c.fillToMinimum(ctx)
		c.settle()
		return
	}

	opt, err := c.requestOption()
	if err != nil {
		c.fail(err)
		return
	}
	if queued {
		// Queued children of an unsynced parent only exist locally.
		opt = query.Offline
	}
	q, err := c.buildQuery(bd)
	if err != nil {
		c.fail(err)
		return
	}
	c.runner.option = opt
	c.runner.run(ctx, q, func(rs *query.ResultSet, err error) {
		c.loaded(ctx, rs, err)
	})
}

func (c *ChildSetController) offlineQueued(ctx context.Context) bool {
	return c.deps.Offline != nil && !c.parent.IsZero() &&
		c.deps.Offline.HasQueuedChildren(ctx, c.parent, c.tab.InfoArea)
}

func (c *ChildSetController) loaded(ctx context.Context, rs *query.ResultSet, err error) {
	if err != nil {
		c.fail(fmt.Errorf("child query %s: %w", c.tab.Name, err))
		return
	}
	for _, row := range rs.Rows {
		if _, err := c.materialize(ctx, row, false, nil); err != nil {
			c.fail(err)
			return
		}
	}
	c.fillToMinimum(ctx)
	c.settle()
}

// settle finishes with the set group, or goes Empty when there is nothing
// to show and nothing may be added.
func (c *ChildSetController) settle() {
	if len(c.set.Children) == 0 && !c.addEnabled {
		c.empty()
		return
	}
	c.refreshAffordances()
	c.finish(c.set)
}

func (c *ChildSetController) fillToMinimum(ctx context.Context) {
	for len(c.LiveChildren()) < c.minCount && c.CanAdd() {
		if _, err := c.insert(ctx, nil); err != nil {
			log.Printf("controller: %s: seeding child: %v", c.label(), err)
			return
		}
	}
}

// materialize creates the context and group of one child. In view mode
// the child is displayed only and not tracked.
func (c *ChildSetController) materialize(ctx context.Context, row *record.Row, isNew bool, initial *value.Map) (*edit.ChildContext, error) {
	ref := record.Ref{InfoArea: c.tab.InfoArea}
	if row != nil {
		ref = row.Ref
	}
	child := edit.NewChildContext(ref, isNew)
	g := group.New(group.KindChild, c.tab.DisplayLabel())
	g.Record = child.Ref
	child.Group = g

	if !c.mode.Editing() {
		g.Fields = c.fields.viewFields(valueSource{row: row})
		c.set.AddChild(g)
		return child, nil
	}

	in := editInput{src: valueSource{row: row}, initial: initial, isNew: isNew}
	if !isNew && c.deps.Offline != nil {
		if off, ok := c.deps.Offline.OfflineRecord(ctx, ref); ok {
			in.offline = off
		}
	}
	eb, err := c.fields.editFields(in, child.AddField)
	if err != nil {
		return nil, err
	}
	g.Fields = eb.fields
	g.AddAction(&group.Action{Name: ActionDeleteChild, Label: "Delete", Record: &g.Record, Enabled: c.deleteEnabled})
	for _, fc := range eb.contexts {
		if fc.Spec.Attributes.Must && !fc.Inert {
			c.tracker.Track(mustKey(child.ID, fc.Name), fc.Empty())
		}
	}
	c.bindings[child.ID] = eb
	c.children = append(c.children, child)
	c.set.AddChild(g)
	return child, nil
}

func mustKey(childID, field string) string { return childID + "/" + field }

// insertValues merges template defaults, the binding seed and initial, in
// increasing precedence.
func (c *ChildSetController) insertValues(initial *value.Map) (*value.Map, error) {
	vals := value.NewMap()
	if c.tab.TemplateFilter != "" {
		if c.deps.Specs == nil {
			return nil, &ConfigurationError{Tab: c.tab.Name, Reason: "no spec provider"}
		}
		f, err := c.deps.Specs.Filter(c.tab.TemplateFilter)
		if err != nil {
			return nil, &ConfigurationError{Tab: c.tab.Name, Reason: "template filter " + c.tab.TemplateFilter, Err: err}
		}
		vals.Merge(value.FromStrings(f.Values), true)
	}
	vals.Merge(c.seed, true)
	vals.Merge(initial, true)
	return vals, nil
}

func (c *ChildSetController) insert(ctx context.Context, initial *value.Map) (*edit.ChildContext, error) {
	vals, err := c.insertValues(initial)
	if err != nil {
		return nil, err
	}
	return c.materialize(ctx, nil, true, vals)
}

// InsertChild appends a new child seeded from the template filter, the
// parent values and initial (later sources win).
func (c *ChildSetController) InsertChild(ctx context.Context, initial *value.Map) (*edit.ChildContext, error) {
	if !c.mode.Editing() || c.set == nil {
		return nil, ErrNotEditing
	}
	if !c.CanAdd() {
		return nil, ErrAddDisabled
	}
	child, err := c.insert(ctx, initial)
	if err != nil {
		return nil, err
	}
	c.refreshAffordances()
	return child, nil
}

// DeleteChild removes a new child outright and marks an existing one for
// deletion. Both leave the live group.
func (c *ChildSetController) DeleteChild(childID string) error {
	idx, child := c.find(childID)
	if child == nil {
		return ErrUnknownChild
	}
	if child.DeleteRequested() {
		return nil
	}
	if !c.deleteEnabled {
		return ErrDeleteDisabled
	}
	if len(c.LiveChildren()) <= c.minCount {
		return fmt.Errorf("%w: at least %d required", ErrDeleteDisabled, c.minCount)
	}
	c.set.RemoveChild(child.Group)
	for _, fc := range child.Fields() {
		c.tracker.Untrack(mustKey(child.ID, fc.Name))
	}
	if child.New {
		c.children = append(c.children[:idx], c.children[idx+1:]...)
		delete(c.bindings, child.ID)
	} else {
		child.MarkDeleted()
	}
	c.refreshAffordances()
	return nil
}

// SetChildFieldValue applies a user edit to one child field.
func (c *ChildSetController) SetChildFieldValue(childID, field, v string) (bool, error) {
	_, child := c.find(childID)
	if child == nil || child.DeleteRequested() {
		return false, ErrUnknownChild
	}
	eb := c.bindings[child.ID]
	fc := eb.context(field)
	if fc == nil || fc.Inert {
		return false, ErrUnknownField
	}
	if fc.ReadOnly {
		return false, ErrReadOnlyField
	}
	if !fc.SetValue(v) {
		return false, nil
	}
	c.fields.refresh(eb.widgets[field])
	if c.tracker.Update(mustKey(child.ID, field), fc.Empty()) {
		c.valueChanged(value.F(field, v))
	}
	return true, nil
}

// SetChildLink records a changed link on a child.
func (c *ChildSetController) SetChildLink(childID string, l record.Link) error {
	_, child := c.find(childID)
	if child == nil || child.DeleteRequested() {
		return ErrUnknownChild
	}
	child.SetLink(l)
	return nil
}

func (c *ChildSetController) find(childID string) (int, *edit.ChildContext) {
	for i, ch := range c.children {
		if ch.ID == childID {
			return i, ch
		}
	}
	return -1, nil
}

func (c *ChildSetController) refreshAffordances() {
	live := c.LiveChildren()
	c.set.SetActionEnabled(ActionAddChild, c.CanAdd())
	canDelete := c.deleteEnabled && len(live) > c.minCount
	for _, ch := range live {
		ch.Group.SetActionEnabled(ActionDeleteChild, canDelete)
	}
}

// MustFieldsFilled reports whether every required child field has a value.
func (c *ChildSetController) MustFieldsFilled() bool {
	return c.tracker == nil || c.tracker.AllFilled()
}

// ChangedRecordsForParent diffs the tracked children into persistence
// operations. A zero parent falls back to the bound one.
func (c *ChildSetController) ChangedRecordsForParent(parent record.Ref, parentNew bool, parentValues *value.Map) []record.Operation {
	if parent.IsZero() {
		parent = c.parent
	}
	var tmpl *spec.FilterSpec
	if c.tab.CreateTemplateFilter != "" && c.deps.Specs != nil {
		f, err := c.deps.Specs.Filter(c.tab.CreateTemplateFilter)
		if err != nil {
			log.Printf("controller: %s: create template: %v", c.label(), err)
		} else {
			tmpl = f
		}
	}
	return DiffChildren(c.children, DiffOptions{
		Parent:          parent,
		ParentNew:       parentNew,
		ParentValues:    parentValues,
		LinkName:        c.tab.LinkName,
		UserChangesOnly: c.tab.UserChangesOnly,
		CreateTemplate:  tmpl,
		KeyField:        c.keyField,
		KeyReuse:        c.keyReuse,
	})
}

// Violations aggregates the constraint violations of every child against
// page. Children with a key field also need that field once edited.
func (c *ChildSetController) Violations(page *edit.Page) []edit.Violation {
	var out []edit.Violation
	for _, child := range c.children {
		out = append(out, child.Violations(page)...)
		if v, ok := c.keyViolation(child); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *ChildSetController) keyViolation(child *edit.ChildContext) (edit.Violation, bool) {
	if c.keyField == "" || child.DeleteRequested() {
		return edit.Violation{}, false
	}
	key := child.Field(c.keyField)
	if key == nil || !key.Empty() {
		return edit.Violation{}, false
	}
	touched := !child.New
	for _, fc := range child.Fields() {
		if fc.UserChanged() {
			touched = true
		}
	}
	if !touched || !child.HasNonEmptyField() {
		return edit.Violation{}, false
	}
	label := key.Name
	if key.Spec != nil && key.Spec.DisplayLabel() != "" {
		label = key.Spec.DisplayLabel()
	}
	return edit.Violation{
		Field:   c.keyField,
		ChildID: child.ID,
		Code:    "key_required",
		Message: fmt.Sprintf("%s is required", label),
	}, true
}

// Validate returns the violations as a *edit.ValidationError, or nil.
func (c *ChildSetController) Validate(page *edit.Page) error {
	return edit.AsError(c.Violations(page))
}
