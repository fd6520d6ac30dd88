// Package value provides the small tagged records that flow through the
// rendering pipeline in place of free-form key/value bags: named field
// values, typed options, and an insertion-ordered value map.
package value

import (
	"fmt"
	"sort"
	"strconv"
)

// Field is a single named value, e.g. a field assignment or a named
// context slot such as "$ParentRecordId".
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// F is shorthand for constructing a Field.
func F(name, v string) Field {
	return Field{Name: name, Value: v}
}

// Map is an insertion-ordered set of named string values. The zero value
// is an empty map ready for use. Setting an existing key keeps its
// original position.
type Map struct {
	order []string
	vals  map[string]string
}

// NewMap builds a Map from the given fields; later fields win.
func NewMap(fields ...Field) *Map {
	m := &Map{}
	for _, f := range fields {
		m.Set(f.Name, f.Value)
	}
	return m
}

// FromStrings builds a Map from a plain map, ordering keys alphabetically
// so the result is deterministic.
func FromStrings(in map[string]string) *Map {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := &Map{}
	for _, k := range keys {
		m.Set(k, in[k])
	}
	return m
}

// Set assigns v to name.
func (m *Map) Set(name, v string) {
	if m.vals == nil {
		m.vals = make(map[string]string)
	}
	if _, ok := m.vals[name]; !ok {
		m.order = append(m.order, name)
	}
	m.vals[name] = v
}

// Get returns the value for name and whether it is present.
func (m *Map) Get(name string) (string, bool) {
	if m == nil || m.vals == nil {
		return "", false
	}
	v, ok := m.vals[name]
	return v, ok
}

// Value returns the value for name or "" when absent.
func (m *Map) Value(name string) string {
	v, _ := m.Get(name)
	return v
}

// Delete removes name from the map.
func (m *Map) Delete(name string) {
	if m == nil || m.vals == nil {
		return
	}
	if _, ok := m.vals[name]; !ok {
		return
	}
	delete(m.vals, name)
	for i, k := range m.order {
		if k == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Fields returns the entries in insertion order.
func (m *Map) Fields() []Field {
	if m == nil {
		return nil
	}
	out := make([]Field, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, Field{Name: k, Value: m.vals[k]})
	}
	return out
}

// Strings returns a plain map copy.
func (m *Map) Strings() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for k, v := range m.vals {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy. Cloning nil yields an empty map.
func (m *Map) Clone() *Map {
	out := &Map{}
	if m == nil {
		return out
	}
	for _, k := range m.order {
		out.Set(k, m.vals[k])
	}
	return out
}

// Merge copies entries from other into m. When overwrite is false,
// existing keys in m are kept.
func (m *Map) Merge(other *Map, overwrite bool) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, exists := m.Get(k); exists && !overwrite {
			continue
		}
		m.Set(k, other.vals[k])
	}
}

// Kind tags the payload carried by a Variant.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
	KindBool
)

// Variant is a tagged option payload.
type Variant struct {
	kind Kind
	s    string
	i    int
	b    bool
}

func String(s string) Variant { return Variant{kind: KindString, s: s} }
func Int(i int) Variant       { return Variant{kind: KindInt, i: i} }
func Bool(b bool) Variant     { return Variant{kind: KindBool, b: b} }

// Kind reports the payload type.
func (v Variant) Kind() Kind { return v.kind }

// AsString renders any variant as a string.
func (v Variant) AsString() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.Itoa(v.i)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// AsInt returns the integer payload, parsing strings when needed.
func (v Variant) AsInt() (int, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindString:
		n, err := strconv.Atoi(v.s)
		return n, err == nil
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean payload, parsing strings and ints when needed.
func (v Variant) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindInt:
		return v.i != 0, true
	case KindString:
		b, err := strconv.ParseBool(v.s)
		return b, err == nil
	default:
		return false, false
	}
}

// Option is a typed key/variant pair.
type Option struct {
	Key     string
	Variant Variant
}

// Options is a sparse bag of typed options.
type Options []Option

// OptionsFromMap converts decoded configuration values into typed
// options. Unsupported value types are rejected.
func OptionsFromMap(in map[string]any) (Options, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Options, 0, len(in))
	for _, k := range keys {
		var v Variant
		switch t := in[k].(type) {
		case string:
			v = String(t)
		case bool:
			v = Bool(t)
		case int:
			v = Int(t)
		case int64:
			v = Int(int(t))
		case float64:
			v = Int(int(t))
		case nil:
			continue
		default:
			return nil, fmt.Errorf("option %q: unsupported value type %T", k, t)
		}
		out = append(out, Option{Key: k, Variant: v})
	}
	return out, nil
}

// Lookup finds the option for key.
func (o Options) Lookup(key string) (Variant, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt.Variant, true
		}
	}
	return Variant{}, false
}

// String returns the option as a string or def.
func (o Options) String(key, def string) string {
	if v, ok := o.Lookup(key); ok {
		return v.AsString()
	}
	return def
}

// Int returns the option as an int or def.
func (o Options) Int(key string, def int) int {
	if v, ok := o.Lookup(key); ok {
		if n, ok := v.AsInt(); ok {
			return n
		}
	}
	return def
}

// Bool returns the option as a bool or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o.Lookup(key); ok {
		if b, ok := v.AsBool(); ok {
			return b
		}
	}
	return def
}
