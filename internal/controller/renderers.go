package controller

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
)

// ListRenderer renders one row as detail fields and several rows either as
// nested item groups or, with the "flat" option, as one field per row.
type ListRenderer struct{}

func (ListRenderer) Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error) {
	if rs.Len() == 1 && !rc.Options.Bool("always_list", false) {
		row := rs.First()
		g := newTabGroup(group.KindDetail, rc.Tab, row.Ref)
		g.Fields = rc.Fields(row)
		if len(g.Fields) == 0 {
			return nil, nil
		}
		return g, nil
	}

	g := newTabGroup(group.KindList, rc.Tab, rc.Link)
	flat := rc.Options.Bool("flat", false)
	sortField := rc.Options.String("sort_field", "")
	for _, row := range rs.Rows {
		fields := rc.Fields(row)
		if len(fields) == 0 {
			continue
		}
		if flat {
			ref := row.Ref
			g.AddField(&group.Field{
				Name:  row.Ref.String(),
				Label: fields[0].Value,
				Value: joinValues(fields[1:]),
				Kind:  group.FieldLinkedRecord,
				Link:  &ref,
			})
			continue
		}
		item := group.New(group.KindItem, fields[0].Value)
		item.Record = row.Ref
		item.Fields = fields
		item.AddAction(&group.Action{Name: "open", Label: "Open", Target: rc.Options.String("open_target", ""), Record: &item.Record, Enabled: true})
		if sortField != "" {
			item.SortKey = row.Value(sortField)
			g.InsertSorted(item)
		} else {
			g.AddChild(item)
		}
	}
	if len(g.Fields) == 0 && len(g.Children) == 0 {
		return nil, nil
	}
	return g, nil
}

func joinValues(fields []*group.Field) string {
	vals := make([]string, 0, len(fields))
	for _, f := range fields {
		vals = append(vals, f.Value)
	}
	return strings.Join(vals, ", ")
}

// DocumentRenderer lists document records as document fields. Retrieval of
// the documents themselves happens elsewhere.
type DocumentRenderer struct{}

func (DocumentRenderer) Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error) {
	titleField := rc.Options.String("title_field", "Title")
	g := newTabGroup(group.KindDocuments, rc.Tab, rc.Link)
	for _, row := range rs.Rows {
		title := row.Value(titleField)
		if title == "" {
			title = row.Ref.RecordID
		}
		ref := row.Ref
		g.AddField(&group.Field{Name: row.Ref.String(), Label: title, Value: row.Value("MimeType"), Kind: group.FieldDocument, Link: &ref})
	}
	return g, nil
}

// CharacteristicsRenderer groups characteristic rows by their group field
// in order of first appearance.
type CharacteristicsRenderer struct{}

func (CharacteristicsRenderer) Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error) {
	groupField := rc.Options.String("group_field", "Group")
	nameField := rc.Options.String("name_field", "Name")
	valueField := rc.Options.String("value_field", "Value")

	g := newTabGroup(group.KindCharacteristics, rc.Tab, rc.Link)
	sections := make(map[string]*group.Group)
	for _, row := range rs.Rows {
		name := row.Value(nameField)
		if name == "" {
			continue
		}
		key := row.Value(groupField)
		sec, ok := sections[key]
		if !ok {
			sec = group.New(group.KindItem, key)
			sections[key] = sec
			g.AddChild(sec)
		}
		sec.AddField(&group.Field{Name: name, Label: name, Value: row.Value(valueField), Kind: group.FieldText})
	}
	if len(g.Children) == 0 {
		return nil, nil
	}
	return g, nil
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ContactTimesRenderer renders opening/contact hours, one item per time
// type and one field per weekday with its ranges merged.
type ContactTimesRenderer struct{}

func (ContactTimesRenderer) Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error) {
	typeField := rc.Options.String("type_field", "Type")
	dayField := rc.Options.String("day_field", "Day")
	fromField := rc.Options.String("from_field", "From")
	toField := rc.Options.String("to_field", "To")

	g := newTabGroup(group.KindContactTimes, rc.Tab, rc.Link)
	ranges := make(map[string]map[string][]string)
	var types []string
	for _, row := range rs.Rows {
		day := normalizeDay(row.Value(dayField))
		if day == "" {
			continue
		}
		typ := row.Value(typeField)
		if _, ok := ranges[typ]; !ok {
			ranges[typ] = make(map[string][]string)
			types = append(types, typ)
		}
		ranges[typ][day] = append(ranges[typ][day], fmt.Sprintf("%s-%s", row.Value(fromField), row.Value(toField)))
	}
	for _, typ := range types {
		item := group.New(group.KindItem, typ)
		for _, day := range weekdays {
			if spans, ok := ranges[typ][day]; ok {
				item.AddField(&group.Field{Name: day, Label: day, Value: strings.Join(spans, ", "), Kind: group.FieldText})
			}
		}
		g.AddChild(item)
	}
	if len(g.Children) == 0 {
		return nil, nil
	}
	return g, nil
}

func normalizeDay(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return ""
	}
	short := strings.ToUpper(s[:1]) + strings.ToLower(s[1:3])
	for _, d := range weekdays {
		if d == short {
			return d
		}
	}
	return ""
}

// MenuRenderer turns the tab's menu into actions on the first result row.
type MenuRenderer struct{}

func (MenuRenderer) Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error) {
	if rc.Tab.Menu == "" || rc.Specs == nil {
		return nil, &ConfigurationError{Tab: rc.Tab.Name, Reason: "menu tab without menu"}
	}
	menu, err := rc.Specs.Menu(rc.Tab.Menu)
	if err != nil {
		return nil, &ConfigurationError{Tab: rc.Tab.Name, Reason: "menu " + rc.Tab.Menu, Err: err}
	}
	label := menu.Label
	if label == "" {
		label = rc.Tab.DisplayLabel()
	}
	g := group.New(group.KindMenu, label)
	g.RootTab = rc.Tab.Name
	g.SortKey = rc.Tab.SortKey
	var target record.Ref
	if row := rs.First(); row != nil {
		target = row.Ref
		g.Record = row.Ref
	}
	for _, it := range menu.Items {
		a := &group.Action{Name: it.Name, Label: it.Label, Target: it.Target, Enabled: true}
		if a.Label == "" {
			a.Label = it.Name
		}
		if !target.IsZero() {
			r := target
			a.Record = &r
		}
		g.AddAction(a)
	}
	if len(g.Actions) == 0 {
		return nil, nil
	}
	return g, nil
}
