package spec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyCUE = `
#Field: {
	name: string
	label?: string
	attributes?: {...}
	...
}

tabs: [
	{
		name:      "CompanyDetail"
		type:      "DETAIL"
		info_area: "FI"
		fields: [#Field & {name: "Name", label: "Company"}, #Field & {name: "Email", attributes: {email: true}}]
		options: {nested: true, max: 5}
	},
	{
		name:        "Contacts"
		type:        "CHILDREN"
		info_area:   "KP"
		link_name:   "Company"
		max_count:   3
		max_new_count: 0
	},
]

filters: [{
	name: "ContactDefaults"
	values: {Country: "AT"}
}]

catalogs: [{
	name: "Country"
	values: [{code: "AT", text: "Austria"}, {code: "DE", text: "Germany"}]
}]
`

func TestLoadCUE(t *testing.T) {
	r, err := LoadCUE("company.cue", []byte(companyCUE))
	require.NoError(t, err)

	tab, err := r.Tab("CompanyDetail")
	require.NoError(t, err)
	assert.Equal(t, "FI", tab.InfoArea)
	require.Len(t, tab.Fields, 2)
	assert.Equal(t, "Company", tab.Fields[0].DisplayLabel())
	assert.True(t, tab.Fields[1].Attributes.Email)
	assert.Equal(t, true, tab.Options["nested"])
	assert.Equal(t, float64(5), tab.Options["max"])

	contacts, err := r.Tab("Contacts")
	require.NoError(t, err)
	require.NotNil(t, contacts.MaxNewCount)
	assert.Equal(t, 0, *contacts.MaxNewCount)
	assert.Nil(t, contacts.MaxUpdateCount)

	filter, err := r.Filter("ContactDefaults")
	require.NoError(t, err)
	assert.Equal(t, "AT", filter.Values["Country"])

	cat, err := r.Catalog("Country")
	require.NoError(t, err)
	assert.Equal(t, "Germany", cat.Text("DE"))
	assert.Equal(t, "XX", cat.Text("XX"))
}

func TestLoadCUE_IncompleteValueFails(t *testing.T) {
	_, err := LoadCUE("bad.cue", []byte(`tabs: [{name: string, type: "DETAIL"}]`))
	assert.Error(t, err)
}

func TestLoadJSON_UnknownTypeRejected(t *testing.T) {
	_, err := LoadJSON([]byte(`{"tabs":[{"name":"X","type":"WIDGET"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "specs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tabs":[{"name":"A","type":"list","info_area":"FI"}]}`), 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)
	tab, err := r.Tab("A")
	require.NoError(t, err)
	assert.Equal(t, TypeList, tab.NormalizedType())
	assert.Equal(t, []string{"A"}, r.TabNames())
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Tab("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = r.Menu("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBundle_ValidateDuplicates(t *testing.T) {
	b := Bundle{Tabs: []TabSpec{
		{Name: "A", Type: TypeDetail},
		{Name: "A", Type: TypeDetail},
		{Name: "", Type: TypeDetail},
	}}
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tab")
	assert.Contains(t, err.Error(), "empty name")
}
