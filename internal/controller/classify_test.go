package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
)

func classifiedTab() *spec.TabSpec {
	return &spec.TabSpec{
		Name:     "Person",
		Type:     spec.TypeDetail,
		InfoArea: "KP",
		Fields: []spec.FieldSpec{
			{Name: "Mail", Attributes: spec.FieldAttributes{Email: true, Phone: true}},
			{Name: "Tel", Attributes: spec.FieldAttributes{Phone: true, Hyperlink: true}},
			{Name: "Company", LinkedInfoArea: "FI", Attributes: spec.FieldAttributes{Hyperlink: true}},
			{Name: "Web", Attributes: spec.FieldAttributes{Hyperlink: true}},
			{Name: "Status", Catalog: "status", Type: "date"},
			{Name: "Born", Type: "date"},
			{Name: "FullName", ChildFields: []string{"First", "Last"}, Format: "{2}, {1}"},
			{Name: "Secret", Attributes: spec.FieldAttributes{Hidden: true}},
			{Name: "Photo", Attributes: spec.FieldAttributes{Image: true}},
			{Name: "Blank"},
		},
	}
}

func TestViewFields_Classification(t *testing.T) {
	reg := spec.NewRegistry()
	reg.RegisterCatalog(&spec.CatalogSpec{Name: "status", Values: []spec.CatalogValue{{Code: "A", Text: "Active"}}})
	p := newFieldPipeline(classifiedTab(), reg)

	src := valueSource{row: record.NewRow(record.Ref{InfoArea: "KP", RecordID: "1"}, map[string]string{
		"Mail":    "ann@example.com",
		"Tel":     "+43 1 234",
		"Company": "7",
		"Web":     "https://example.com",
		"Status":  "A",
		"Born":    "1990-01-31",
		"First":   "Jane",
		"Last":    "Doe",
		"Secret":  "s3cr3t",
		"Photo":   "photo.png",
	})}
	fields := p.viewFields(src)

	byName := make(map[string]*group.Field)
	var names []string
	for _, f := range fields {
		byName[f.Name] = f
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Mail", "Tel", "Company", "Web", "Status", "Born", "FullName"}, names)

	assert.Equal(t, group.FieldEmail, byName["Mail"].Kind)
	assert.Equal(t, group.FieldPhone, byName["Tel"].Kind)
	assert.Equal(t, group.FieldLinkedRecord, byName["Company"].Kind)
	require.NotNil(t, byName["Company"].Link)
	assert.Equal(t, record.Ref{InfoArea: "FI", RecordID: "7"}, *byName["Company"].Link)
	assert.Equal(t, group.FieldURL, byName["Web"].Kind)
	assert.Equal(t, group.FieldCatalog, byName["Status"].Kind)
	assert.Equal(t, "Active", byName["Status"].Value)
	assert.Equal(t, group.FieldDate, byName["Born"].Kind)
	assert.Equal(t, "Doe, Jane", byName["FullName"].Value)
	assert.Equal(t, []string{"Jane", "Doe"}, byName["FullName"].Parts)
}

func TestViewFields_LinkedRefForm(t *testing.T) {
	tab := &spec.TabSpec{Name: "T", InfoArea: "KP", Fields: []spec.FieldSpec{
		{Name: "Company", LinkedInfoArea: "FI", Attributes: spec.FieldAttributes{Hyperlink: true}},
	}}
	p := newFieldPipeline(tab, nil)
	fields := p.viewFields(valueSource{row: record.NewRow(record.Ref{}, map[string]string{"Company": "FI.42"})})
	require.Len(t, fields, 1)
	assert.Equal(t, "42", fields[0].Link.RecordID)
}

func TestViewFields_SoleImageRendersPlaceholder(t *testing.T) {
	tab := &spec.TabSpec{Name: "Photo", InfoArea: "KP", Fields: []spec.FieldSpec{
		{Name: "Photo", Attributes: spec.FieldAttributes{Image: true}},
	}}
	p := newFieldPipeline(tab, nil)
	fields := p.viewFields(valueSource{row: record.NewRow(record.Ref{}, map[string]string{"Photo": "p.png"})})
	require.Len(t, fields, 1)
	assert.Equal(t, group.FieldPlaceholder, fields[0].Kind)
}

func TestViewFields_UnknownCatalogKeepsCode(t *testing.T) {
	tab := &spec.TabSpec{Name: "T", InfoArea: "KP", Fields: []spec.FieldSpec{{Name: "Status", Catalog: "missing"}}}
	p := newFieldPipeline(tab, spec.NewRegistry())
	fields := p.viewFields(valueSource{row: record.NewRow(record.Ref{}, map[string]string{"Status": "X"})})
	require.Len(t, fields, 1)
	assert.Equal(t, "X", fields[0].Value)
	assert.Equal(t, group.FieldCatalog, fields[0].Kind)
}

func TestFormatComposite(t *testing.T) {
	assert.Equal(t, "Jane Doe", formatComposite("", []string{"Jane", "Doe"}))
	assert.Equal(t, "Doe", formatComposite("", []string{"", "Doe"}))
	assert.Equal(t, "Doe, Jane", formatComposite("{2}, {1}", []string{"Jane", "Doe"}))
	assert.Equal(t, "1010 Vienna", formatComposite("{1}  {2}", []string{"1010", "Vienna"}))
}

func TestIsEditable(t *testing.T) {
	tab := &spec.TabSpec{Name: "T", InfoArea: "KP", Fields: []spec.FieldSpec{
		{Name: "Own"},
		{Name: "Linked", LinkID: 1},
		{Name: "Foreign", InfoArea: "FI"},
		{Name: "Picked", InfoArea: "FI", Selector: "CompanyPicker"},
	}}
	p := newFieldPipeline(tab, nil)
	assert.True(t, p.isEditable(&tab.Fields[0]))
	assert.False(t, p.isEditable(&tab.Fields[1]))
	assert.False(t, p.isEditable(&tab.Fields[2]))
	assert.True(t, p.isEditable(&tab.Fields[3]))

	tab.EnableLinkedEditFields = true
	p = newFieldPipeline(tab, nil)
	assert.True(t, p.isEditable(&tab.Fields[1]))
}
