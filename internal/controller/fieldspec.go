package controller

import (
	"log"
	"strconv"
	"strings"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// fieldPipeline turns the fields of one tab into presentation fields or
// edit contexts. One pipeline belongs to one controller, so editability is
// computed once per field and cached.
type fieldPipeline struct {
	tab      *spec.TabSpec
	specs    spec.Provider
	editable map[string]bool
	catalogs map[string]*spec.CatalogSpec
}

func newFieldPipeline(tab *spec.TabSpec, specs spec.Provider) *fieldPipeline {
	return &fieldPipeline{
		tab:      tab,
		specs:    specs,
		editable: make(map[string]bool),
		catalogs: make(map[string]*spec.CatalogSpec),
	}
}

// isEditable reports whether fs may be rendered as an edit widget at all.
func (p *fieldPipeline) isEditable(fs *spec.FieldSpec) bool {
	if v, ok := p.editable[fs.Name]; ok {
		return v
	}
	sameArea := fs.InfoArea == "" || fs.InfoArea == p.tab.InfoArea
	v := p.tab.EnableLinkedEditFields || fs.Selector != "" || (sameArea && fs.LinkID == 0)
	p.editable[fs.Name] = v
	return v
}

func (p *fieldPipeline) catalog(name string) *spec.CatalogSpec {
	if c, ok := p.catalogs[name]; ok {
		return c
	}
	var c *spec.CatalogSpec
	if p.specs != nil {
		var err error
		c, err = p.specs.Catalog(name)
		if err != nil {
			log.Printf("controller: tab %s: catalog %s: %v", p.tab.Name, name, err)
		}
	}
	p.catalogs[name] = c
	return c
}

// valueSource yields raw field values from a row or a value context.
type valueSource struct {
	row    *record.Row
	values *value.Map
}

func sourceOf(bd binding) valueSource {
	switch bd.mode {
	case bindRow:
		return valueSource{row: bd.row}
	case bindContext:
		return valueSource{values: bd.values}
	default:
		return valueSource{}
	}
}

func (s valueSource) get(name string) string {
	if s.row != nil {
		return s.row.Value(name)
	}
	return s.values.Value(name)
}

// read returns the logical value of fs and, for composites, its parts.
func (p *fieldPipeline) read(fs *spec.FieldSpec, src valueSource) (string, []string) {
	if !fs.IsComposite() {
		return src.get(fs.Name), nil
	}
	parts := make([]string, len(fs.ChildFields))
	for i, name := range fs.ChildFields {
		parts[i] = src.get(name)
	}
	return formatComposite(fs.Format, parts), parts
}

// formatComposite joins composite parts with the {1}..{N} format of the
// field, or with spaces when it has none. Runs of blanks left by empty
// parts collapse.
func formatComposite(format string, parts []string) string {
	if format == "" {
		return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	}
	out := format
	for i := len(parts); i >= 1; i-- {
		out = strings.ReplaceAll(out, "{"+strconv.Itoa(i)+"}", parts[i-1])
	}
	return strings.Join(strings.Fields(out), " ")
}

// tabActions turns the buttons of tab into enabled actions on rec.
func tabActions(tab *spec.TabSpec, rec record.Ref) []*group.Action {
	out := make([]*group.Action, 0, len(tab.Buttons))
	for _, b := range tab.Buttons {
		a := &group.Action{Name: b.Name, Label: b.Label, Target: b.Target, Enabled: true}
		if a.Label == "" {
			a.Label = b.Name
		}
		if !rec.IsZero() {
			r := rec
			a.Record = &r
		}
		out = append(out, a)
	}
	return out
}

// newTabGroup creates the group of kind for tab, labelled and carrying the
// tab buttons.
func newTabGroup(kind group.Kind, tab *spec.TabSpec, rec record.Ref) *group.Group {
	g := group.New(kind, tab.DisplayLabel())
	g.RootTab = tab.Name
	g.SortKey = tab.SortKey
	g.Record = rec
	for _, a := range tabActions(tab, rec) {
		g.AddAction(a)
	}
	return g
}

func boundRef(bd binding) record.Ref {
	if bd.mode == bindRow && bd.row != nil {
		return bd.row.Ref
	}
	return record.Ref{}
}
