// Package group is the presentation-model tree produced by controllers.
//
// A Group is an opaque node of fields, actions and child groups. The
// rendering pipeline only creates, populates and re-parents groups; how a
// client draws them is outside this module.
package group

import (
	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/record"
)

// Kind classifies a group node.
type Kind string

const (
	KindDetail          Kind = "detail"
	KindEdit            Kind = "edit"
	KindList            Kind = "list"
	KindItem            Kind = "item"
	KindBoard           Kind = "board"
	KindChildSet        Kind = "child_set"
	KindChild           Kind = "child"
	KindDocuments       Kind = "documents"
	KindCharacteristics Kind = "characteristics"
	KindContactTimes    Kind = "contact_times"
	KindMenu            Kind = "menu"
)

// FieldKind selects the widget used for a field.
type FieldKind string

const (
	FieldText         FieldKind = "text"
	FieldEmail        FieldKind = "email"
	FieldPhone        FieldKind = "phone"
	FieldURL          FieldKind = "url"
	FieldLinkedRecord FieldKind = "linked_record"
	FieldCatalog      FieldKind = "catalog"
	FieldDate         FieldKind = "date"
	FieldDocument     FieldKind = "document"
	FieldPlaceholder  FieldKind = "placeholder"
)

// Field is one rendered field.
type Field struct {
	Name     string      `json:"name"`
	Label    string      `json:"label,omitempty"`
	Value    string      `json:"value"`
	Kind     FieldKind   `json:"kind"`
	Editable bool        `json:"editable,omitempty"`
	ReadOnly bool        `json:"read_only,omitempty"`
	Changed  bool        `json:"changed,omitempty"`
	Parts    []string    `json:"parts,omitempty"`
	Link     *record.Ref `json:"link,omitempty"`
}

// Action is a button or navigation entry.
type Action struct {
	Name    string      `json:"name"`
	Label   string      `json:"label,omitempty"`
	Target  string      `json:"target,omitempty"`
	Record  *record.Ref `json:"record,omitempty"`
	Enabled bool        `json:"enabled"`
}

// Group is a presentation-model node.
type Group struct {
	ID       string     `json:"id"`
	Kind     Kind       `json:"kind"`
	Label    string     `json:"label,omitempty"`
	RootTab  string     `json:"root_tab,omitempty"`
	SortKey  string     `json:"sort_key,omitempty"`
	Record   record.Ref `json:"record,omitempty"`
	Fields   []*Field   `json:"fields,omitempty"`
	Actions  []*Action  `json:"actions,omitempty"`
	Children []*Group   `json:"children,omitempty"`

	parent *Group
}

// New creates an empty group.
func New(kind Kind, label string) *Group {
	return &Group{ID: uuid.New().String(), Kind: kind, Label: label}
}

// Parent returns the owning group, or nil for a root.
func (g *Group) Parent() *Group { return g.parent }

// AddField appends a field.
func (g *Group) AddField(f *Field) { g.Fields = append(g.Fields, f) }

// Field returns the field with name, or nil.
func (g *Group) Field(name string) *Field {
	for _, f := range g.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddAction appends an action, replacing an existing one of the same name.
func (g *Group) AddAction(a *Action) {
	for i, existing := range g.Actions {
		if existing.Name == a.Name {
			g.Actions[i] = a
			return
		}
	}
	g.Actions = append(g.Actions, a)
}

// Action returns the named action, or nil.
func (g *Group) Action(name string) *Action {
	for _, a := range g.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// SetActionEnabled toggles a named action; it reports whether it exists.
func (g *Group) SetActionEnabled(name string, enabled bool) bool {
	a := g.Action(name)
	if a == nil {
		return false
	}
	a.Enabled = enabled
	return true
}

// AddChild appends child, detaching it from any previous parent.
func (g *Group) AddChild(child *Group) {
	child.detach()
	child.parent = g
	g.Children = append(g.Children, child)
}

// InsertSorted inserts child before the first existing child whose sort
// key is greater, or appends it. Equal keys keep arrival order.
func (g *Group) InsertSorted(child *Group) {
	child.detach()
	child.parent = g
	for i, existing := range g.Children {
		if existing.SortKey > child.SortKey {
			g.Children = append(g.Children, nil)
			copy(g.Children[i+1:], g.Children[i:])
			g.Children[i] = child
			return
		}
	}
	g.Children = append(g.Children, child)
}

// RemoveChild detaches child; it reports whether child was present.
func (g *Group) RemoveChild(child *Group) bool {
	for i, existing := range g.Children {
		if existing == child {
			g.Children = append(g.Children[:i], g.Children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

func (g *Group) detach() {
	if g.parent != nil {
		g.parent.RemoveChild(g)
	}
}

// Walk visits g and its descendants depth-first until fn returns false.
func (g *Group) Walk(fn func(*Group) bool) bool {
	if !fn(g) {
		return false
	}
	for _, c := range g.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// SortKeys returns the sort keys of the direct children in order.
func (g *Group) SortKeys() []string {
	out := make([]string, len(g.Children))
	for i, c := range g.Children {
		out[i] = c.SortKey
	}
	return out
}
