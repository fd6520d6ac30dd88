package controller

import (
	"context"

	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// WrapController nests exactly one inner controller. Its group, state and
// error are read through to the inner controller; it only decorates the
// inner group with its own label, root tab and buttons.
type WrapController struct {
	Base
	inner Controller
}

// NewWrapController wraps inner. The wrapper owns inner from now on.
func NewWrapController(deps Deps, tab *spec.TabSpec, mode Mode, inner Controller) *WrapController {
	c := &WrapController{inner: inner}
	c.init(c, c, deps, tab, mode)
	c.through = inner
	inner.SetDelegate(wrapDelegate{c: c})
	if p, ok := inner.(interface{ setParent(Controller) }); ok {
		p.setParent(c)
	}
	return c
}

// Inner returns the wrapped controller.
func (c *WrapController) Inner() Controller { return c.inner }

func (c *WrapController) Children() []Controller { return []Controller{c.inner} }

func (c *WrapController) bind(ctx context.Context, bd binding) {
	switch bd.mode {
	case bindRow:
		c.inner.ApplyResultRow(ctx, bd.row)
	default:
		c.inner.ApplyContext(ctx, bd.values)
	}
	c.PropagateDependingKeys(c.inner)
	if c.inner.State().Settled() {
		c.settle()
	}
}

// settle runs when the inner controller settled.
func (c *WrapController) settle() {
	c.stateChanged = true
	if c.inner.State() == Empty && c.slot.alternate != nil {
		if c.HandleEmptyGroup() {
			c.signal()
		}
		return
	}
	if c.inner.State() == Finished {
		c.decorate()
	}
	c.signal()
}

func (c *WrapController) decorate() {
	g := c.inner.Group()
	if g == nil {
		return
	}
	g.RootTab = c.tab.Name
	if c.tab.Label != "" {
		g.Label = c.tab.Label
	}
	if c.tab.SortKey != "" {
		g.SortKey = c.tab.SortKey
	}
	for _, a := range tabActions(c.tab, g.Record) {
		g.AddAction(a)
	}
}

type wrapDelegate struct {
	c *WrapController
}

func (d wrapDelegate) Finished(inner Controller) {
	if inner != d.c.inner {
		return
	}
	d.c.settle()
}

func (d wrapDelegate) ValueChanged(_ Controller, v value.Field) { d.c.valueChanged(v) }

func (d wrapDelegate) PerformNavigation(_ Controller, nav Navigation) { d.c.Navigate(nav) }

func (d wrapDelegate) ValueForKey(_ Controller, key string) (string, bool) {
	return d.c.valueForKey(key)
}
