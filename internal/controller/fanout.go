package controller

import (
	"context"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// FanOutController dispatches the same binding to N item controllers and
// merges the groups of those that finish into a board, ordered by sort
// key. It finishes once every item has settled, whatever the order.
type FanOutController struct {
	Base
	items   []Controller
	pending int
	counted map[string]bool
	board   *group.Group
}

// NewFanOutController creates a fan-out over items. It owns the items.
func NewFanOutController(deps Deps, tab *spec.TabSpec, mode Mode, items ...Controller) *FanOutController {
	c := &FanOutController{items: items}
	c.init(c, c, deps, tab, mode)
	for _, it := range items {
		it.SetDelegate(fanOutDelegate{c: c})
		if p, ok := it.(interface{ setParent(Controller) }); ok {
			p.setParent(c)
		}
	}
	return c
}

func (c *FanOutController) Children() []Controller { return c.items }

// Pending returns the number of items that have not settled yet.
func (c *FanOutController) Pending() int { return c.pending }

func (c *FanOutController) bind(ctx context.Context, bd binding) {
	c.board = newTabGroup(group.KindBoard, c.tab, boundRef(bd))
	c.pending = len(c.items)
	c.counted = make(map[string]bool, len(c.items))
	if c.pending == 0 {
		c.finish(c.board)
		return
	}
	for _, it := range c.items {
		switch bd.mode {
		case bindRow:
			it.ApplyResultRow(ctx, bd.row)
		default:
			it.ApplyContext(ctx, bd.values)
		}
		if it.State().Settled() {
			c.itemSettled(it)
		}
	}
	c.PropagateDependingKeys(c.items...)
}

// itemSettled counts one item. Only Finished items contribute a group.
func (c *FanOutController) itemSettled(it Controller) {
	if c.counted == nil || c.counted[it.ID()] || c.pending == 0 {
		return
	}
	c.counted[it.ID()] = true
	c.pending--
	if it.State() == Finished {
		if g := it.Group(); g != nil {
			if g.SortKey == "" && it.Tab() != nil {
				g.SortKey = it.Tab().Name
			}
			c.board.InsertSorted(g)
		}
	}
	if c.pending == 0 {
		c.finish(c.board)
	}
}

type fanOutDelegate struct {
	c *FanOutController
}

func (d fanOutDelegate) Finished(it Controller) { d.c.itemSettled(it) }

func (d fanOutDelegate) ValueChanged(_ Controller, v value.Field) { d.c.valueChanged(v) }

func (d fanOutDelegate) PerformNavigation(_ Controller, nav Navigation) { d.c.Navigate(nav) }

func (d fanOutDelegate) ValueForKey(_ Controller, key string) (string, bool) {
	return d.c.valueForKey(key)
}
