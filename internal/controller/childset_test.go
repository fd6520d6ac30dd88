package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

var appointment = record.Ref{InfoArea: "MA", RecordID: "1"}

func participantsTab() *spec.TabSpec {
	return &spec.TabSpec{
		Name:          "Participants",
		Type:          spec.TypeChildren,
		InfoArea:      "PE",
		LinkName:      "Appointment",
		RequestOption: "offline",
		Fields:        []spec.FieldSpec{{Name: "Rep"}, {Name: "Role"}, {Name: "Note"}},
	}
}

func participant(id, rep, role string) *record.Row {
	r := record.NewRow(record.Ref{InfoArea: "PE", RecordID: id}, map[string]string{"Rep": rep, "Role": role})
	r.Links = []record.Link{{Name: "Appointment", Target: appointment}}
	return r
}

func appointmentRow() *record.Row {
	return record.NewRow(appointment, map[string]string{"Subject": "Kick-off"})
}

func intPtr(n int) *int { return &n }

func TestChildSet_NewParentSynthesizesOneChild(t *testing.T) {
	f := newFixture(t)
	c := NewChildSetController(f.deps, participantsTab(), ModeNew)

	g := c.ApplyContext(context.Background(), nil)
	require.NotNil(t, g)
	assert.Equal(t, group.KindChildSet, g.Kind)
	require.Len(t, c.ChildContexts(), 1)
	assert.True(t, c.ChildContexts()[0].New)
	assert.Len(t, g.Children, 1)
	assert.True(t, g.Action(ActionAddChild).Enabled)
	assert.True(t, c.CanAdd())
}

func TestChildSet_InsertMergesTemplateParentAndInitial(t *testing.T) {
	tab := participantsTab()
	tab.TemplateFilter = "ParticipantDefaults"
	f := newFixture(t)
	f.reg.RegisterFilter(&spec.FilterSpec{Name: "ParticipantDefaults", Values: map[string]string{"Role": "Attendee", "Note": "template"}})
	c := NewChildSetController(f.deps, tab, ModeNew)
	ctx := context.Background()

	c.ApplyContext(ctx, value.NewMap(value.F("Note", "from parent")))
	first := c.ChildContexts()[0]
	assert.Equal(t, "Attendee", first.Field("Role").Value())
	assert.Equal(t, "from parent", first.Field("Note").Value())

	child, err := c.InsertChild(ctx, value.NewMap(value.F("Rep", "R9"), value.F("Role", "Host")))
	require.NoError(t, err)
	assert.Equal(t, "R9", child.Field("Rep").Value())
	assert.Equal(t, "Host", child.Field("Role").Value())
	assert.Equal(t, "from parent", child.Field("Note").Value())
	assert.Len(t, c.Group().Children, 2)
}

func TestChildSet_MaxCountDisablesAdd(t *testing.T) {
	tab := participantsTab()
	tab.MaxNewCount = intPtr(2)
	f := newFixture(t)
	c := NewChildSetController(f.deps, tab, ModeNew)
	ctx := context.Background()

	c.ApplyContext(ctx, nil)
	assert.Equal(t, 2, c.MaxCount())
	_, err := c.InsertChild(ctx, nil)
	require.NoError(t, err)
	assert.False(t, c.CanAdd())
	assert.False(t, c.Group().Action(ActionAddChild).Enabled)

	_, err = c.InsertChild(ctx, nil)
	assert.ErrorIs(t, err, ErrAddDisabled)
	assert.Len(t, c.LiveChildren(), 2)
}

func TestChildSet_UpdateModeAddRules(t *testing.T) {
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"))
	ctx := context.Background()

	c := NewChildSetController(f.deps, participantsTab(), ModeUpdate)
	require.NotNil(t, c.ApplyResultRow(ctx, appointmentRow()))
	assert.False(t, c.AddRecordEnabled())
	_, err := c.InsertChild(ctx, nil)
	assert.ErrorIs(t, err, ErrAddDisabled)

	tab := participantsTab()
	tab.MaxUpdateCount = intPtr(0)
	c = NewChildSetController(f.deps, tab, ModeUpdate)
	c.ApplyResultRow(ctx, appointmentRow())
	assert.False(t, c.AddRecordEnabled())

	tab = participantsTab()
	tab.MaxUpdateCount = intPtr(3)
	c = NewChildSetController(f.deps, tab, ModeUpdate)
	c.ApplyResultRow(ctx, appointmentRow())
	assert.True(t, c.CanAdd())
}

func TestChildSet_NoRowsAndNoAddIsEmpty(t *testing.T) {
	f := newFixture(t)
	c := NewChildSetController(f.deps, participantsTab(), ModeUpdate)

	assert.Nil(t, c.ApplyResultRow(context.Background(), appointmentRow()))
	assert.Equal(t, Empty, c.State())
}

func TestChildSet_ViewModeDisplaysOnly(t *testing.T) {
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"), participant("2", "R2", "Guest"))
	c := NewChildSetController(f.deps, participantsTab(), ModeView)

	g := c.ApplyResultRow(context.Background(), appointmentRow())
	require.NotNil(t, g)
	assert.Len(t, g.Children, 2)
	assert.Empty(t, c.ChildContexts())
	assert.Nil(t, g.Action(ActionAddChild))
	_, err := c.InsertChild(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestChildSet_DeleteNewAndExisting(t *testing.T) {
	tab := participantsTab()
	tab.MaxUpdateCount = intPtr(5)
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"))
	c := NewChildSetController(f.deps, tab, ModeUpdate)
	ctx := context.Background()
	c.ApplyResultRow(ctx, appointmentRow())
	existing := c.ChildContexts()[0]

	added, err := c.InsertChild(ctx, nil)
	require.NoError(t, err)
	_, err = c.SetChildFieldValue(added.ID, "Rep", "R2")
	require.NoError(t, err)

	require.NoError(t, c.DeleteChild(added.ID))
	assert.Len(t, c.ChildContexts(), 1)
	require.NoError(t, c.DeleteChild(existing.ID))
	assert.Len(t, c.ChildContexts(), 1)
	assert.Empty(t, c.LiveChildren())
	assert.Empty(t, c.Group().Children)

	assert.ErrorIs(t, c.DeleteChild("nope"), ErrUnknownChild)
	_, err = c.SetChildFieldValue(existing.ID, "Rep", "R3")
	assert.ErrorIs(t, err, ErrUnknownChild)

	ops := c.ChangedRecordsForParent(record.Ref{}, false, nil)
	assert.Equal(t, []record.Operation{{Kind: record.OpDelete, Ref: existing.Ref}}, ops)
}

func TestChildSet_MinCountGuardsDelete(t *testing.T) {
	tab := participantsTab()
	tab.MinCount = 1
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"))
	c := NewChildSetController(f.deps, tab, ModeUpdate)
	c.ApplyResultRow(context.Background(), appointmentRow())
	only := c.ChildContexts()[0]

	assert.ErrorIs(t, c.DeleteChild(only.ID), ErrDeleteDisabled)
	assert.False(t, only.Group.Action(ActionDeleteChild).Enabled)
}

func TestChildSet_DeleteDisabled(t *testing.T) {
	tab := participantsTab()
	disabled := false
	tab.DeleteEnabled = &disabled
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"))
	c := NewChildSetController(f.deps, tab, ModeUpdate)
	c.ApplyResultRow(context.Background(), appointmentRow())

	assert.ErrorIs(t, c.DeleteChild(c.ChildContexts()[0].ID), ErrDeleteDisabled)
}

func TestChildSet_DiffIsMinimalAndIdempotent(t *testing.T) {
	f := newFixture(t)
	f.local.Put(participant("1", "R1", "Host"), participant("2", "R2", "Guest"))
	c := NewChildSetController(f.deps, participantsTab(), ModeUpdate)
	c.ApplyResultRow(context.Background(), appointmentRow())
	first := c.ChildContexts()[0]

	assert.Empty(t, c.ChangedRecordsForParent(record.Ref{}, false, nil))

	moved, err := c.SetChildFieldValue(first.ID, "Role", "Guest")
	require.NoError(t, err)
	require.True(t, moved)

	want := []record.Operation{{
		Kind:   record.OpUpdate,
		Ref:    record.Ref{InfoArea: "PE", RecordID: "1"},
		Fields: []record.FieldChange{{Field: "Role", Old: "Host", New: "Guest"}},
	}}
	assert.Equal(t, want, c.ChangedRecordsForParent(record.Ref{}, false, nil))
	assert.Equal(t, want, c.ChangedRecordsForParent(record.Ref{}, false, nil))
}

func TestChildSet_CreatesCarryParentLinkAndTemplateRecords(t *testing.T) {
	tab := participantsTab()
	tab.CreateTemplateFilter = "ParticipantExtras"
	f := newFixture(t)
	f.reg.RegisterFilter(&spec.FilterSpec{Name: "ParticipantExtras", Records: []spec.TemplateRecord{
		{InfoArea: "PX", Values: map[string]string{"Status": "invited", "Channel": "mail"}},
	}})
	c := NewChildSetController(f.deps, tab, ModeNew)
	c.ApplyContext(context.Background(), nil)
	child := c.ChildContexts()[0]
	_, err := c.SetChildFieldValue(child.ID, "Rep", "R1")
	require.NoError(t, err)

	parent := record.Ref{InfoArea: "MA", RecordID: "9"}
	ops := c.ChangedRecordsForParent(parent, true, nil)
	require.Len(t, ops, 2)

	create := ops[0]
	assert.Equal(t, record.OpCreate, create.Kind)
	assert.Equal(t, child.Ref, create.Ref)
	assert.Equal(t, []record.FieldChange{{Field: "Rep", New: "R1"}}, create.Fields)
	require.NotNil(t, create.Parent)
	assert.Equal(t, record.Link{Name: "Appointment", Target: parent}, *create.Parent)

	aux := ops[1]
	assert.True(t, aux.Aux)
	assert.Equal(t, "PX", aux.Ref.InfoArea)
	assert.Equal(t, []string{"Channel", "Status"}, []string{aux.Fields[0].Field, aux.Fields[1].Field})
	assert.Equal(t, child.Ref, aux.Parent.Target)

	assert.Equal(t, ops, c.ChangedRecordsForParent(parent, true, nil))
}

func TestChildSet_UntouchedNewChildIsNotCreated(t *testing.T) {
	f := newFixture(t)
	c := NewChildSetController(f.deps, participantsTab(), ModeNew)
	c.ApplyContext(context.Background(), nil)

	assert.Empty(t, c.ChangedRecordsForParent(record.Ref{InfoArea: "MA", RecordID: "9"}, true, nil))
}

func TestChildSet_KeyFieldGatesCreateAndValidation(t *testing.T) {
	tab := participantsTab()
	tab.KeyField = "Rep"
	f := newFixture(t)
	c := NewChildSetController(f.deps, tab, ModeNew)
	c.ApplyContext(context.Background(), nil)
	child := c.ChildContexts()[0]
	_, err := c.SetChildFieldValue(child.ID, "Note", "no rep yet")
	require.NoError(t, err)

	assert.Empty(t, c.ChangedRecordsForParent(record.Ref{InfoArea: "MA", RecordID: "9"}, true, nil))
	vs := c.Violations(edit.NewPage(record.Ref{InfoArea: "MA", RecordID: "9"}, true))
	require.Len(t, vs, 1)
	assert.Equal(t, "key_required", vs[0].Code)
	assert.Equal(t, child.ID, vs[0].ChildID)
}

func TestChildSet_KeyReuseFoldsFirstChildIntoParent(t *testing.T) {
	tab := participantsTab()
	tab.Type = spec.TypeParticipants
	tab.KeyReuseFields = map[string]string{"Rep": "RepID"}
	f := newFixture(t)
	c := NewChildSetController(f.deps, tab, ModeNew)
	require.Equal(t, "first_child", c.KeyReusePolicy().Name())
	ctx := context.Background()

	c.ApplyContext(ctx, nil)
	first := c.ChildContexts()[0]
	_, err := c.SetChildFieldValue(first.ID, "Rep", "R1")
	require.NoError(t, err)
	second, err := c.InsertChild(ctx, value.NewMap(value.F("Rep", "R2")))
	require.NoError(t, err)

	parent := record.Ref{InfoArea: "MA", RecordID: "9"}
	ops := c.ChangedRecordsForParent(parent, true, value.NewMap())
	require.Len(t, ops, 2)
	assert.Equal(t, record.Operation{
		Kind:   record.OpUpdate,
		Ref:    parent,
		Fields: []record.FieldChange{{Field: "RepID", New: "R1"}},
	}, ops[0])
	assert.Equal(t, record.OpCreate, ops[1].Kind)
	assert.Equal(t, second.Ref, ops[1].Ref)

	// A conflicting parent value keeps the child a record of its own.
	ops = c.ChangedRecordsForParent(parent, true, value.NewMap(value.F("RepID", "R7")))
	require.Len(t, ops, 2)
	assert.Equal(t, record.OpCreate, ops[0].Kind)
	assert.Equal(t, first.Ref, ops[0].Ref)

	// Existing parents never fold.
	ops = c.ChangedRecordsForParent(parent, false, value.NewMap())
	assert.Equal(t, record.OpCreate, ops[0].Kind)
}

func TestChildSet_KeyReuseDisabledByOption(t *testing.T) {
	tab := participantsTab()
	tab.Type = spec.TypeParticipants
	tab.KeyReuseFields = map[string]string{"Rep": "RepID"}
	tab.Options = map[string]any{"key_reuse": false}
	f := newFixture(t)
	c := NewChildSetController(f.deps, tab, ModeNew)
	assert.Equal(t, "none", c.KeyReusePolicy().Name())

	c.SetKeyReusePolicy(FirstChildKeyReuse{Fields: tab.KeyReuseFields})
	assert.Equal(t, "first_child", c.KeyReusePolicy().Name())
	c.SetKeyReusePolicy(nil)
	assert.Equal(t, "none", c.KeyReusePolicy().Name())
}

func TestChildSet_ValidationAggregatesChildren(t *testing.T) {
	tab := participantsTab()
	tab.Fields[0].Attributes.Must = true
	f := newFixture(t)
	c := NewChildSetController(f.deps, tab, ModeNew)
	c.ApplyContext(context.Background(), nil)
	child := c.ChildContexts()[0]
	page := edit.NewPage(record.Ref{InfoArea: "MA", RecordID: "9"}, true)

	assert.False(t, c.MustFieldsFilled())
	assert.NoError(t, c.Validate(page), "an untouched new child is not validated")

	_, err := c.SetChildFieldValue(child.ID, "Note", "x")
	require.NoError(t, err)
	err = c.Validate(page)
	var verr *edit.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "required", verr.Violations[0].Code)
	assert.Equal(t, "Rep", verr.Violations[0].Field)

	_, err = c.SetChildFieldValue(child.ID, "Rep", "R1")
	require.NoError(t, err)
	assert.True(t, c.MustFieldsFilled())
	assert.NoError(t, c.Validate(page))
}

func TestChildSet_QueuedChildrenLoadLocally(t *testing.T) {
	tab := participantsTab()
	tab.RequestOption = "online"
	f := newFixture(t)
	f.deps.Offline = fakeOffline{queued: true}
	f.local.Put(participant("1", "R1", "Host"), participant("2", "R2", "Guest"))
	c := NewChildSetController(f.deps, tab, ModeNew)

	g := c.ApplyResultRow(context.Background(), appointmentRow())
	require.NotNil(t, g)
	assert.Len(t, c.ChildContexts(), 2)
	assert.Equal(t, 0, c.runner.RemoteCalls())
	assert.Equal(t, 0, f.remote.Finds())
}

func TestChildSet_RemoteLoadSettlesLater(t *testing.T) {
	tab := participantsTab()
	tab.RequestOption = "online"
	f := newFixture(t)
	f.remote.Put(participant("1", "R1", "Host"))
	c := NewChildSetController(f.deps, tab, ModeUpdate)
	d := &recordingDelegate{}
	c.SetDelegate(d)

	assert.Nil(t, c.ApplyResultRow(context.Background(), appointmentRow()))
	f.drain()
	require.Len(t, d.finished, 1)
	assert.Len(t, c.ChildContexts(), 1)
	assert.Equal(t, "R1", c.ChildContexts()[0].Field("Rep").Value())
}
