// Package edit holds the mutable edit state of a record being edited: one
// FieldContext per edited field, grouped into ChildContexts for repeatable
// child records or into the root Page.
package edit

import (
	"errors"
	"strings"

	"github.com/matthewbaird/recordview/internal/spec"
)

// ErrAlreadyOwned is returned when a field context is attached twice.
var ErrAlreadyOwned = errors.New("edit: field context already has an owner")

// Owner is implemented by the containers a FieldContext may belong to.
type Owner interface {
	OwnerID() string
}

// FieldContext is the edit state of one field.
type FieldContext struct {
	Spec *spec.FieldSpec
	Name string

	value          string
	original       string
	offline        string
	hasOffline     bool
	changed        bool
	userChanged    bool
	offlineChanged bool

	// ReadOnly contexts reject SetValue. Inert contexts carry hidden
	// values and are never rendered.
	ReadOnly bool
	Inert    bool

	dependents []*FieldContext
	// OnSourceChanged is called on a dependent when a field it depends on
	// changes.
	OnSourceChanged func(dependent, source *FieldContext)

	owner Owner
}

// NewFieldContext creates a context whose value and original value are raw.
func NewFieldContext(fs *spec.FieldSpec, name, raw string) *FieldContext {
	if name == "" && fs != nil {
		name = fs.Name
	}
	return &FieldContext{Spec: fs, Name: name, value: raw, original: raw}
}

func (f *FieldContext) Value() string    { return f.value }
func (f *FieldContext) Original() string { return f.original }

// OfflineValue returns the locally queued value, if one exists.
func (f *FieldContext) OfflineValue() (string, bool) { return f.offline, f.hasOffline }

// Changed reports whether the value differs from the original because of
// a user edit or an initial-value substitution.
func (f *FieldContext) Changed() bool { return f.changed }

// UserChanged reports whether the change came from SetValue.
func (f *FieldContext) UserChanged() bool { return f.changed && f.userChanged }

// OfflineChanged reports whether a queued offline version differs from the
// original value.
func (f *FieldContext) OfflineChanged() bool { return f.offlineChanged }

// Empty reports whether the current value is blank.
func (f *FieldContext) Empty() bool { return strings.TrimSpace(f.value) == "" }

// Owner returns the container of the context.
func (f *FieldContext) Owner() Owner { return f.owner }

func (f *FieldContext) attach(o Owner) error {
	if f.owner != nil && f.owner != o {
		return ErrAlreadyOwned
	}
	f.owner = o
	return nil
}

// SetValue applies a user edit. It reports whether the value moved.
func (f *FieldContext) SetValue(v string) bool {
	if f.ReadOnly {
		return false
	}
	if v == f.value {
		return false
	}
	f.value = v
	f.changed = v != f.original
	f.userChanged = f.changed
	f.notify()
	return true
}

// SetInitialValue substitutes a programmatic default. A value differing
// from the original marks the context changed but not user-changed.
func (f *FieldContext) SetInitialValue(v string) {
	f.value = v
	f.changed = v != f.original
	f.userChanged = false
}

// SetOfflineValue records the locally queued version of the field. A
// mismatch with the original marks the context offline-changed, which
// takes precedence over an initial-value change mark.
func (f *FieldContext) SetOfflineValue(v string) {
	f.offline = v
	f.hasOffline = true
	f.offlineChanged = v != f.original
	if f.offlineChanged {
		f.value = v
		f.changed = false
		f.userChanged = false
	}
}

// AddDependent registers d to be notified when f changes.
func (f *FieldContext) AddDependent(d *FieldContext) {
	for _, existing := range f.dependents {
		if existing == d {
			return
		}
	}
	f.dependents = append(f.dependents, d)
}

// Dependents returns the registered dependents.
func (f *FieldContext) Dependents() []*FieldContext { return f.dependents }

func (f *FieldContext) notify() {
	for _, d := range f.dependents {
		if d.OnSourceChanged != nil {
			d.OnSourceChanged(d, f)
		}
	}
}
