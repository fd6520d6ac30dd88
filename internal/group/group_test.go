package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyed(key string) *Group {
	g := New(KindItem, key)
	g.SortKey = key
	return g
}

func TestInsertSorted_StableOrder(t *testing.T) {
	board := New(KindBoard, "board")
	board.InsertSorted(keyed("b"))
	board.InsertSorted(keyed("a"))
	board.InsertSorted(keyed("c"))
	first := keyed("b")
	first.Label = "second-b"
	board.InsertSorted(first)

	assert.Equal(t, []string{"a", "b", "b", "c"}, board.SortKeys())
	assert.Equal(t, "second-b", board.Children[2].Label)
	for _, c := range board.Children {
		assert.Same(t, board, c.Parent())
	}
}

func TestAddChild_Reparents(t *testing.T) {
	a := New(KindDetail, "a")
	b := New(KindDetail, "b")
	child := New(KindItem, "child")

	a.AddChild(child)
	b.AddChild(child)

	assert.Empty(t, a.Children)
	require.Len(t, b.Children, 1)
	assert.Same(t, b, child.Parent())
}

func TestRemoveChild(t *testing.T) {
	g := New(KindChildSet, "set")
	c := New(KindChild, "c")
	g.AddChild(c)

	assert.True(t, g.RemoveChild(c))
	assert.Nil(t, c.Parent())
	assert.False(t, g.RemoveChild(c))
}

func TestActions(t *testing.T) {
	g := New(KindChildSet, "set")
	g.AddAction(&Action{Name: "add", Enabled: true})
	g.AddAction(&Action{Name: "add", Label: "Add", Enabled: true})

	require.Len(t, g.Actions, 1)
	assert.Equal(t, "Add", g.Action("add").Label)
	assert.True(t, g.SetActionEnabled("add", false))
	assert.False(t, g.Action("add").Enabled)
	assert.False(t, g.SetActionEnabled("missing", true))
}

func TestWalk_StopsEarly(t *testing.T) {
	root := New(KindBoard, "root")
	root.AddChild(New(KindItem, "1"))
	root.AddChild(New(KindItem, "2"))

	var seen []string
	root.Walk(func(g *Group) bool {
		seen = append(seen, g.Label)
		return g.Label != "1"
	})
	assert.Equal(t, []string{"root", "1"}, seen)
}
