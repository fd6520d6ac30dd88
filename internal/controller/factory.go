package controller

import (
	"context"
	"fmt"

	"github.com/matthewbaird/recordview/internal/spec"
)

// maxNesting bounds inner/items/alternate recursion so cyclic specs fail
// instead of recursing forever.
const maxNesting = 8

type constructor func(tab *spec.TabSpec, mode Mode, depth int) (Controller, error)

// Factory builds controller trees from tab specs through a dispatch table
// keyed by tab type.
type Factory struct {
	deps  Deps
	table map[string]constructor
}

// NewFactory creates a factory for deps.
func NewFactory(deps Deps) *Factory {
	f := &Factory{deps: deps}
	f.table = map[string]constructor{
		spec.TypeDetail:          f.detail,
		spec.TypeList:            f.queryBound(ListRenderer{}),
		spec.TypeDocuments:       f.queryBound(DocumentRenderer{}),
		spec.TypeCharacteristics: f.queryBound(CharacteristicsRenderer{}),
		spec.TypeContactTimes:    f.queryBound(ContactTimesRenderer{}),
		spec.TypeMenu:            f.queryBound(MenuRenderer{}),
		spec.TypeParent:          f.wrap,
		spec.TypeListInDetail:    f.wrap,
		spec.TypeBoard:           f.fanOut,
		spec.TypeChildren:        f.childSet,
		spec.TypeParticipants:    f.childSet,
	}
	return f
}

// Deps returns the collaborators handed to every controller.
func (f *Factory) Deps() Deps { return f.deps }

// New builds the controller tree of the named tab. Configuration problems
// yield a controller that settles in Error with a *ConfigurationError.
func (f *Factory) New(tabName string, mode Mode) Controller {
	return f.build(tabName, mode, 0)
}

// NewForTab builds the controller tree of tab.
func (f *Factory) NewForTab(tab *spec.TabSpec, mode Mode) Controller {
	return f.buildTab(tab, mode, 0)
}

func (f *Factory) build(name string, mode Mode, depth int) Controller {
	if f.deps.Specs == nil {
		return f.failed(&spec.TabSpec{Name: name}, mode, &ConfigurationError{Tab: name, Reason: "no spec provider"})
	}
	tab, err := f.deps.Specs.Tab(name)
	if err != nil {
		return f.failed(&spec.TabSpec{Name: name}, mode, &ConfigurationError{Tab: name, Reason: "unknown tab", Err: err})
	}
	return f.buildTab(tab, mode, depth)
}

func (f *Factory) buildTab(tab *spec.TabSpec, mode Mode, depth int) Controller {
	if depth > maxNesting {
		return f.failed(tab, mode, &ConfigurationError{Tab: tab.Name, Reason: "nesting too deep"})
	}
	ctor, ok := f.table[tab.NormalizedType()]
	if !ok {
		return f.failed(tab, mode, &ConfigurationError{Tab: tab.Name, Reason: fmt.Sprintf("unknown tab type %q", tab.Type)})
	}
	c, err := ctor(tab, mode, depth)
	if err != nil {
		return f.failed(tab, mode, err)
	}
	for _, key := range tab.DependsOn {
		c.AddDependingKey(key)
	}
	if tab.Alternate != "" {
		if s, ok := c.(interface{ SetAlternate(Controller) }); ok {
			s.SetAlternate(f.build(tab.Alternate, mode, depth+1))
		}
	}
	return c
}

func (f *Factory) detail(tab *spec.TabSpec, mode Mode, _ int) (Controller, error) {
	return NewDetailController(f.deps, tab, mode), nil
}

func (f *Factory) queryBound(r ResultRenderer) constructor {
	return func(tab *spec.TabSpec, mode Mode, _ int) (Controller, error) {
		return NewQueryBoundController(f.deps, tab, mode, r), nil
	}
}

func (f *Factory) wrap(tab *spec.TabSpec, mode Mode, depth int) (Controller, error) {
	if tab.Inner == "" {
		return nil, &ConfigurationError{Tab: tab.Name, Reason: "wrapping tab without inner tab"}
	}
	inner := f.build(tab.Inner, mode, depth+1)
	return NewWrapController(f.deps, tab, mode, inner), nil
}

func (f *Factory) fanOut(tab *spec.TabSpec, mode Mode, depth int) (Controller, error) {
	items := make([]Controller, 0, len(tab.Items))
	for _, name := range tab.Items {
		items = append(items, f.build(name, mode, depth+1))
	}
	return NewFanOutController(f.deps, tab, mode, items...), nil
}

func (f *Factory) childSet(tab *spec.TabSpec, mode Mode, _ int) (Controller, error) {
	return NewChildSetController(f.deps, tab, mode), nil
}

func (f *Factory) failed(tab *spec.TabSpec, mode Mode, err error) Controller {
	c := &failedController{cause: err}
	c.init(c, c, f.deps, tab, mode)
	return c
}

// failedController stands in for a controller that could not be built. It
// settles in Error on every bind.
type failedController struct {
	Base
	cause error
}

func (c *failedController) bind(context.Context, binding) { c.fail(c.cause) }
