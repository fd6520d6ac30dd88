package controller

import (
	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// kindOf selects the widget for a field. Precedence is email, phone,
// hyperlink, catalog, date, then plain text. Hyperlinks with a linked info
// area resolve to a record; others open as URLs.
func (p *fieldPipeline) kindOf(fs *spec.FieldSpec, raw string) (group.FieldKind, *record.Ref, string) {
	a := fs.Attributes
	switch {
	case a.Email:
		return group.FieldEmail, nil, raw
	case a.Phone:
		return group.FieldPhone, nil, raw
	case a.Hyperlink:
		if fs.LinkedInfoArea == "" || raw == "" {
			return group.FieldURL, nil, raw
		}
		ref := record.Ref{InfoArea: fs.LinkedInfoArea, RecordID: raw}
		if parsed, err := record.ParseRef(raw); err == nil && parsed.InfoArea == fs.LinkedInfoArea {
			ref = parsed
		}
		return group.FieldLinkedRecord, &ref, raw
	case fs.Catalog != "":
		display := raw
		if c := p.catalog(fs.Catalog); c != nil && raw != "" {
			display = c.Text(raw)
		}
		return group.FieldCatalog, nil, display
	case fs.Type == "date":
		return group.FieldDate, nil, raw
	default:
		return group.FieldText, nil, raw
	}
}

func placeholderField(fs *spec.FieldSpec, raw string) *group.Field {
	return &group.Field{Name: fs.Name, Label: fs.DisplayLabel(), Value: raw, Kind: group.FieldPlaceholder}
}

func (p *fieldPipeline) displayField(fs *spec.FieldSpec, src valueSource) *group.Field {
	raw, parts := p.read(fs, src)
	kind, link, display := p.kindOf(fs, raw)
	return &group.Field{
		Name:  fs.Name,
		Label: fs.DisplayLabel(),
		Value: display,
		Kind:  kind,
		Parts: parts,
		Link:  link,
	}
}

// viewFields classifies the fields of the tab for display. Image fields
// are left to document handling unless they are the only field, hidden
// fields are skipped, and so are fields without a value.
func (p *fieldPipeline) viewFields(src valueSource) []*group.Field {
	var out []*group.Field
	sole := len(p.tab.Fields) == 1
	for i := range p.tab.Fields {
		fs := &p.tab.Fields[i]
		if fs.Attributes.Image {
			if sole {
				out = append(out, placeholderField(fs, src.get(fs.Name)))
			}
			continue
		}
		if fs.Attributes.Hidden {
			continue
		}
		f := p.displayField(fs, src)
		if f.Value == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// editInput is what an edit pipeline starts from.
type editInput struct {
	src     valueSource
	initial *value.Map
	offline *record.Row
	isNew   bool
}

// widget ties one rendered edit field to its contexts; composites have
// one context per part.
type widget struct {
	spec  *spec.FieldSpec
	field *group.Field
	parts []*edit.FieldContext
}

// editBinding is the outcome of an edit pipeline.
type editBinding struct {
	fields   []*group.Field
	contexts []*edit.FieldContext
	widgets  map[string]*widget
}

func (eb *editBinding) context(name string) *edit.FieldContext {
	w, ok := eb.widgets[name]
	if !ok {
		return nil
	}
	for _, fc := range w.parts {
		if fc.Name == name {
			return fc
		}
	}
	return nil
}

// editFields builds one context per edited field (or per composite part),
// attaches it through attach, and returns the widgets to render. Hidden
// fields get inert contexts, fields that are not editable render as
// read-only display text without a context.
func (p *fieldPipeline) editFields(in editInput, attach func(*edit.FieldContext) error) (*editBinding, error) {
	eb := &editBinding{widgets: make(map[string]*widget)}
	sole := len(p.tab.Fields) == 1
	for i := range p.tab.Fields {
		fs := &p.tab.Fields[i]
		if fs.Attributes.Image {
			if sole {
				eb.fields = append(eb.fields, placeholderField(fs, in.src.get(fs.Name)))
			}
			continue
		}
		if !p.isEditable(fs) {
			if fs.Attributes.Hidden {
				continue
			}
			f := p.displayField(fs, in.src)
			f.ReadOnly = true
			eb.fields = append(eb.fields, f)
			continue
		}

		names := []string{fs.Name}
		if fs.IsComposite() {
			names = fs.ChildFields
		}
		w := &widget{spec: fs}
		for _, name := range names {
			fc := edit.NewFieldContext(fs, name, in.src.get(name))
			p.seed(fc, fs, in)
			fc.Inert = fs.Attributes.Hidden
			fc.ReadOnly = readOnly(fs, fc, in.isNew)
			if err := attach(fc); err != nil {
				return nil, err
			}
			w.parts = append(w.parts, fc)
			eb.contexts = append(eb.contexts, fc)
			eb.widgets[name] = w
		}
		if fs.Attributes.Hidden {
			continue
		}
		w.field = &group.Field{Name: fs.Name, Label: fs.DisplayLabel()}
		p.refresh(w)
		eb.fields = append(eb.fields, w.field)
	}

	for _, fc := range eb.contexts {
		for _, dep := range fc.Spec.DependsOn {
			if src := eb.context(dep); src != nil {
				src.AddDependent(fc)
			}
		}
	}
	return eb, nil
}

// seed applies initial-value overrides, spec defaults on new records and
// the offline version of the record, in that order.
func (p *fieldPipeline) seed(fc *edit.FieldContext, fs *spec.FieldSpec, in editInput) {
	if v, ok := in.initial.Get(fc.Name); ok {
		if v != fc.Value() {
			fc.SetInitialValue(v)
		}
	} else if in.isNew && fs.Default != "" && fc.Name == fs.Name && fc.Empty() {
		fc.SetInitialValue(fs.Default)
	}
	if in.offline != nil && in.offline.Has(fc.Name) {
		fc.SetOfflineValue(in.offline.Value(fc.Name))
	}
}

// readOnly applies the permanent, locked-on-new and locked-on-update rules.
func readOnly(fs *spec.FieldSpec, fc *edit.FieldContext, isNew bool) bool {
	a := fs.Attributes
	switch {
	case a.ReadOnly:
		return true
	case isNew && a.LockedOnNew:
		return true
	case !isNew && a.LockedOnUpdate && fc.Original() != "":
		return true
	}
	return false
}

// refresh recomputes the rendered field of w from its contexts.
func (p *fieldPipeline) refresh(w *widget) {
	if w.field == nil {
		return
	}
	var raw string
	var parts []string
	if w.spec.IsComposite() {
		parts = make([]string, len(w.parts))
		for i, fc := range w.parts {
			parts[i] = fc.Value()
		}
		raw = formatComposite(w.spec.Format, parts)
	} else if len(w.parts) > 0 {
		raw = w.parts[0].Value()
	}
	kind, link, display := p.kindOf(w.spec, raw)
	w.field.Value = display
	w.field.Kind = kind
	w.field.Link = link
	w.field.Parts = parts

	editable, changed := false, false
	for _, fc := range w.parts {
		if !fc.ReadOnly {
			editable = true
		}
		if fc.Changed() || fc.OfflineChanged() {
			changed = true
		}
	}
	w.field.Editable = editable
	w.field.ReadOnly = !editable
	w.field.Changed = changed
}
