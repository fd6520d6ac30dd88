// Package spec holds the declarative screen configuration: tabs, fields,
// filters, catalogs and menus.
//
// Specs are loaded once (from CUE or JSON) into a Registry and consumed
// read-only by the controllers through the Provider interface. Nothing in
// the rendering pipeline mutates a spec.
package spec

import "strings"

// Tab type tokens understood by the controller factory.
const (
	TypeDetail          = "DETAIL"
	TypeList            = "LIST"
	TypeDocuments       = "DOCUMENTS"
	TypeCharacteristics = "CHARACTERISTICS"
	TypeContactTimes    = "CONTACTTIMES"
	TypeMenu            = "MENU"
	TypeParent          = "PARENT"
	TypeListInDetail    = "LISTINDETAIL"
	TypeBoard           = "BOARD"
	TypeChildren        = "CHILDREN"
	TypeParticipants    = "PARTICIPANTS"
)

// FieldAttributes are the boolean display/edit flags of a field.
type FieldAttributes struct {
	Hidden         bool `json:"hidden,omitempty"`
	ReadOnly       bool `json:"read_only,omitempty"`
	Must           bool `json:"must,omitempty"`
	Image          bool `json:"image,omitempty"`
	Email          bool `json:"email,omitempty"`
	Phone          bool `json:"phone,omitempty"`
	Hyperlink      bool `json:"hyperlink,omitempty"`
	NoLabel        bool `json:"no_label,omitempty"`
	LockedOnNew    bool `json:"locked_on_new,omitempty"`
	LockedOnUpdate bool `json:"locked_on_update,omitempty"`
}

// Constraints are validated against edit values.
type Constraints struct {
	MaxLength int    `json:"max_length,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// FieldSpec describes one field of a tab.
type FieldSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	InfoArea string `json:"info_area,omitempty"` // empty: the tab's root area
	// Type is the value type: "text" (default), "date", "catalog", "bool", "number".
	Type       string          `json:"type,omitempty"`
	Attributes FieldAttributes `json:"attributes,omitempty"`
	// ChildFields makes this an N-field composite; Format joins the parts
	// using {1}..{N} placeholders (a space-join when empty).
	ChildFields []string `json:"child_fields,omitempty"`
	Format      string   `json:"format,omitempty"`
	// LinkID is non-zero when the field is read through a foreign link.
	LinkID int `json:"link_id,omitempty"`
	// LinkedInfoArea is the target area of a hyperlink field.
	LinkedInfoArea string      `json:"linked_info_area,omitempty"`
	Selector       string      `json:"selector,omitempty"`
	Catalog        string      `json:"catalog,omitempty"`
	Default        string      `json:"default,omitempty"`
	Constraints    Constraints `json:"constraints,omitempty"`
	// DependsOn lists fields whose edits must be forwarded to this field.
	DependsOn []string `json:"depends_on,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f *FieldSpec) DisplayLabel() string {
	if f.Attributes.NoLabel {
		return ""
	}
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// IsComposite reports whether the field spans multiple sub-fields.
func (f *FieldSpec) IsComposite() bool {
	return len(f.ChildFields) > 0
}

// ButtonSpec is an action button attached to a tab.
type ButtonSpec struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Target string `json:"target,omitempty"`
}

// TabSpec describes one screen section and how it is rendered.
type TabSpec struct {
	Name     string       `json:"name"`
	Label    string       `json:"label,omitempty"`
	Type     string       `json:"type"`
	InfoArea string       `json:"info_area,omitempty"`
	Fields   []FieldSpec  `json:"fields,omitempty"`
	Buttons  []ButtonSpec `json:"buttons,omitempty"`

	// Query binding.
	Filter        string `json:"filter,omitempty"`
	LinkName      string `json:"link_name,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	RequestOption string `json:"request_option,omitempty"`
	Menu          string `json:"menu,omitempty"`

	// Composition.
	Inner     string   `json:"inner,omitempty"`
	Alternate string   `json:"alternate,omitempty"`
	Items     []string `json:"items,omitempty"`
	SortKey   string   `json:"sort_key,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`

	// Editable child sets.
	TemplateFilter       string            `json:"template_filter,omitempty"`
	CreateTemplateFilter string            `json:"create_template_filter,omitempty"`
	MinCount             int               `json:"min_count,omitempty"`
	MaxCount             int               `json:"max_count,omitempty"`
	MaxNewCount          *int              `json:"max_new_count,omitempty"`
	MaxUpdateCount       *int              `json:"max_update_count,omitempty"`
	DeleteEnabled        *bool             `json:"delete_enabled,omitempty"`
	UserChangesOnly      bool              `json:"user_changes_only,omitempty"`
	KeyField             string            `json:"key_field,omitempty"`
	KeyReuseFields       map[string]string `json:"key_reuse_fields,omitempty"`

	// Field pipeline switches.
	EnableLinkedEditFields bool `json:"enable_linked_edit_fields,omitempty"`
	SignalEveryChange      bool `json:"signal_every_change,omitempty"`

	Options map[string]any `json:"options,omitempty"`
}

// Field returns the field spec with the given name, or nil.
func (t *TabSpec) Field(name string) *FieldSpec {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// DisplayLabel returns the tab label, falling back to the name.
func (t *TabSpec) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Name
}

// NormalizedType returns the upper-cased tab type.
func (t *TabSpec) NormalizedType() string {
	return strings.ToUpper(strings.TrimSpace(t.Type))
}

// ConditionSpec is one filter condition. Values starting with "$" are
// placeholders resolved from the binding context.
type ConditionSpec struct {
	Field string `json:"field"`
	Op    string `json:"op,omitempty"`
	Value string `json:"value,omitempty"`
}

// TemplateRecord is an auxiliary record generated alongside a new child.
type TemplateRecord struct {
	InfoArea string            `json:"info_area"`
	Values   map[string]string `json:"values,omitempty"`
}

// FilterSpec is a named filter. Values are the default field/value pairs
// of a template filter; Records are auxiliary creation templates.
type FilterSpec struct {
	Name       string            `json:"name"`
	InfoArea   string            `json:"info_area,omitempty"`
	Conditions []ConditionSpec   `json:"conditions,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
	Records    []TemplateRecord  `json:"records,omitempty"`
}

// CatalogValue is one code/text pair of a catalog.
type CatalogValue struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// CatalogSpec maps stored codes to display texts.
type CatalogSpec struct {
	Name   string         `json:"name"`
	Values []CatalogValue `json:"values"`
}

// Text returns the display text for code, or code itself when unknown.
func (c *CatalogSpec) Text(code string) string {
	for _, v := range c.Values {
		if v.Code == code {
			return v.Text
		}
	}
	return code
}

// MenuItem is one entry of a menu.
type MenuItem struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Target string `json:"target,omitempty"`
}

// MenuSpec is a named menu.
type MenuSpec struct {
	Name  string     `json:"name"`
	Label string     `json:"label,omitempty"`
	Items []MenuItem `json:"items,omitempty"`
}

// Bundle is the on-disk shape of a configuration file.
type Bundle struct {
	Tabs     []TabSpec     `json:"tabs,omitempty"`
	Filters  []FilterSpec  `json:"filters,omitempty"`
	Catalogs []CatalogSpec `json:"catalogs,omitempty"`
	Menus    []MenuSpec    `json:"menus,omitempty"`
}
