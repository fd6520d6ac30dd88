package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/record"
)

func existingChild(t *testing.T, id string, values map[string]string, order ...string) *edit.ChildContext {
	t.Helper()
	child := edit.NewChildContext(record.Ref{InfoArea: "PE", RecordID: id}, false)
	for _, name := range order {
		require.NoError(t, child.AddField(edit.NewFieldContext(nil, name, values[name])))
	}
	return child
}

func TestDiffChildren_UserChangesOnly(t *testing.T) {
	child := existingChild(t, "1", map[string]string{"Role": "Host"}, "Role", "Note")
	child.Field("Note").SetInitialValue("seeded")

	assert.Empty(t, DiffChildren([]*edit.ChildContext{child}, DiffOptions{UserChangesOnly: true}))

	ops := DiffChildren([]*edit.ChildContext{child}, DiffOptions{})
	require.Len(t, ops, 1)
	assert.Equal(t, []record.FieldChange{{Field: "Note", New: "seeded"}}, ops[0].Fields)

	child.Field("Role").SetValue("Guest")
	ops = DiffChildren([]*edit.ChildContext{child}, DiffOptions{UserChangesOnly: true})
	require.Len(t, ops, 1)
	assert.Equal(t, []record.FieldChange{{Field: "Role", Old: "Host", New: "Guest"}}, ops[0].Fields)
}

func TestDiffChildren_LinkOnlyUpdate(t *testing.T) {
	child := existingChild(t, "1", map[string]string{"Role": "Host"}, "Role")
	rep := record.Link{Name: "Rep", Target: record.Ref{InfoArea: "ID", RecordID: "4"}}
	child.SetLink(rep)

	ops := DiffChildren([]*edit.ChildContext{child}, DiffOptions{})
	require.Len(t, ops, 1)
	assert.Equal(t, record.OpUpdate, ops[0].Kind)
	assert.Empty(t, ops[0].Fields)
	assert.Equal(t, []record.Link{rep}, ops[0].Links)
}

func TestDiffChildren_DeletedNewChildVanishes(t *testing.T) {
	child := edit.NewChildContext(record.Ref{InfoArea: "PE"}, true)
	require.NoError(t, child.AddField(edit.NewFieldContext(nil, "Rep", "R1")))
	child.MarkDeleted()

	assert.Empty(t, DiffChildren([]*edit.ChildContext{child}, DiffOptions{}))
}

func TestFirstChildKeyReuse_RejectsUnmappedValuesAndLinks(t *testing.T) {
	policy := FirstChildKeyReuse{Fields: map[string]string{"Rep": "RepID"}}
	parent := record.Ref{InfoArea: "MA", RecordID: "9"}

	child := edit.NewChildContext(record.Ref{InfoArea: "PE"}, true)
	require.NoError(t, child.AddField(edit.NewFieldContext(nil, "Rep", "R1")))
	require.NoError(t, child.AddField(edit.NewFieldContext(nil, "Note", "hello")))
	_, ok := policy.Apply(KeyReuseInput{Parent: parent, ParentNew: true, Child: child})
	assert.False(t, ok)

	child.Field("Note").SetValue("")
	op, ok := policy.Apply(KeyReuseInput{Parent: parent, ParentNew: true, Child: child})
	require.True(t, ok)
	assert.Equal(t, parent, op.Ref)

	child.SetLink(record.Link{Target: record.Ref{InfoArea: "ID", RecordID: "4"}})
	_, ok = policy.Apply(KeyReuseInput{Parent: parent, ParentNew: true, Child: child})
	assert.False(t, ok)
}
