// Package controller implements the asynchronous composition framework that
// turns tab specs plus a bound row or value context into presentation
// groups.
//
// Every controller embeds Base, which owns the state machine, the
// dependency keys, the renderer slot used for alternate (fallback)
// controllers and the generation counter that drops stale completions.
// Concrete controllers supply the binding pipeline through the binder
// interface. All methods must be called on the single logical thread that
// owns the controller tree; query completions are posted back to it by the
// query engine.
package controller

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// binder is the pipeline hook of a concrete controller. bind must settle
// through finish, empty or fail, either before returning or later from a
// posted completion.
type binder interface {
	bind(ctx context.Context, bd binding)
}

type bindMode int

const (
	bindNone bindMode = iota
	bindRow
	bindContext
)

// binding remembers the argument of the last Apply call. Exactly one of
// row and values is set.
type binding struct {
	mode   bindMode
	row    *record.Row
	values *value.Map
}

type slotKind int

const (
	slotPrimary slotKind = iota
	slotAlternate
)

// rendererSlot says who currently renders: the controller itself or its
// alternate. The alternate is owned by the controller.
type rendererSlot struct {
	active    slotKind
	alternate Controller
}

// Base is the state machine and callback contract shared by every
// controller.
type Base struct {
	id   string
	tab  *spec.TabSpec
	mode Mode
	deps Deps
	impl binder
	self Controller

	state        State
	stateChanged bool
	group        *group.Group
	err          error
	// through makes State, Group and Err read from another controller.
	through StateMachine

	keys     map[string]struct{}
	slot     rendererSlot
	parent   Controller
	delegate Delegate

	binding  binding
	ctx      context.Context
	gen      uint64
	applying int
}

func (b *Base) init(self Controller, impl binder, deps Deps, tab *spec.TabSpec, mode Mode) {
	b.id = uuid.New().String()
	b.self = self
	b.impl = impl
	b.deps = deps
	b.tab = tab
	b.mode = mode
	b.keys = make(map[string]struct{})
	b.ctx = context.Background()
}

func (b *Base) ID() string         { return b.id }
func (b *Base) Tab() *spec.TabSpec { return b.tab }
func (b *Base) Mode() Mode         { return b.mode }

// Parent returns the non-owning back-reference set by the owner.
func (b *Base) Parent() Controller { return b.parent }

func (b *Base) setParent(p Controller) { b.parent = p }

// SetDelegate sets the callback recipient.
func (b *Base) SetDelegate(d Delegate) { b.delegate = d }

// ClearDelegate detaches the callback recipient. Later callbacks become
// no-ops.
func (b *Base) ClearDelegate() { b.delegate = nil }

func (b *Base) State() State {
	if alt := b.activeAlternate(); alt != nil {
		return alt.State()
	}
	if b.through != nil {
		return b.through.State()
	}
	return b.state
}

func (b *Base) Group() *group.Group {
	if alt := b.activeAlternate(); alt != nil {
		return alt.Group()
	}
	if b.through != nil {
		return b.through.Group()
	}
	return b.group
}

func (b *Base) Err() error {
	if alt := b.activeAlternate(); alt != nil {
		return alt.Err()
	}
	if b.through != nil {
		return b.through.Err()
	}
	return b.err
}

func (b *Base) ConsumeStateChanged() bool {
	changed := b.stateChanged
	b.stateChanged = false
	if alt := b.activeAlternate(); alt != nil && alt.ConsumeStateChanged() {
		changed = true
	}
	if b.through != nil && b.through.ConsumeStateChanged() {
		changed = true
	}
	return changed
}

func (b *Base) setState(s State) {
	b.state = s
	b.stateChanged = true
}

// ApplyResultRow binds the controller to row and (re)starts its pipeline.
func (b *Base) ApplyResultRow(ctx context.Context, row *record.Row) *group.Group {
	b.binding = binding{mode: bindRow, row: row}
	return b.run(ctx)
}

// ApplyContext binds the controller to named values and (re)starts its
// pipeline.
func (b *Base) ApplyContext(ctx context.Context, values *value.Map) *group.Group {
	if values == nil {
		values = value.NewMap()
	}
	b.binding = binding{mode: bindContext, values: values}
	return b.run(ctx)
}

// Reapply re-runs the pipeline with the last binding.
func (b *Base) Reapply(ctx context.Context) *group.Group {
	return b.run(ctx)
}

// BoundRow returns the row of the last ApplyResultRow, or nil.
func (b *Base) BoundRow() *record.Row {
	if b.binding.mode != bindRow {
		return nil
	}
	return b.binding.row
}

// BoundValues returns the values of the last ApplyContext, or nil.
func (b *Base) BoundValues() *value.Map {
	if b.binding.mode != bindContext {
		return nil
	}
	return b.binding.values
}

func (b *Base) run(ctx context.Context) *group.Group {
	b.ctx = ctx
	b.gen++
	b.slot.active = slotPrimary
	b.group = nil
	b.err = nil
	b.setState(Pending)

	b.applying++
	b.impl.bind(ctx, b.binding)
	b.applying--

	if !b.State().Settled() {
		return nil
	}
	return b.Group()
}

func (b *Base) checkGeneration(gen uint64) error {
	if gen != b.gen {
		return errStaleCallback
	}
	return nil
}

// finish settles as Finished with g. A nil group settles as Empty.
func (b *Base) finish(g *group.Group) {
	if g == nil {
		b.empty()
		return
	}
	b.group = g
	b.err = nil
	b.setState(Finished)
	b.signal()
}

// empty settles as Empty and hands over to the alternate, if any.
func (b *Base) empty() {
	b.group = nil
	b.err = nil
	b.setState(Empty)
	if b.HandleEmptyGroup() {
		b.signal()
	}
}

func (b *Base) fail(err error) {
	b.group = nil
	b.err = err
	b.setState(Error)
	log.Printf("controller: %s failed: %v", b.label(), err)
	b.signal()
}

// signal reports settlement to the delegate. Settlement inside an Apply
// call is reported through the return value instead.
func (b *Base) signal() {
	if b.applying > 0 || b.delegate == nil {
		return
	}
	b.delegate.Finished(b.self)
}

func (b *Base) label() string {
	name := "<untitled>"
	if b.tab != nil {
		name = b.tab.Name
	}
	return name + "#" + b.id[:8]
}

// SetAlternate installs the fallback controller used when the primary
// pipeline resolves to Empty. The controller takes ownership of alt.
func (b *Base) SetAlternate(alt Controller) {
	b.slot = rendererSlot{alternate: alt}
	if alt == nil {
		return
	}
	alt.SetDelegate(alternateDelegate{b: b})
	if p, ok := alt.(interface{ setParent(Controller) }); ok {
		p.setParent(b.self)
	}
}

// Alternate returns the fallback controller, or nil.
func (b *Base) Alternate() Controller { return b.slot.alternate }

// AlternateActive reports whether the alternate currently renders.
func (b *Base) AlternateActive() bool { return b.activeAlternate() != nil }

func (b *Base) activeAlternate() Controller {
	if b.slot.active != slotAlternate {
		return nil
	}
	return b.slot.alternate
}

// HandleEmptyGroup activates the alternate and re-runs the last binding
// against it. It reports whether the alternate settled synchronously, or
// true when there is no alternate to recover with.
func (b *Base) HandleEmptyGroup() bool {
	alt := b.slot.alternate
	if alt == nil {
		return true
	}
	b.slot.active = slotAlternate
	b.stateChanged = true
	switch b.binding.mode {
	case bindRow:
		alt.ApplyResultRow(b.ctx, b.binding.row)
	case bindContext:
		alt.ApplyContext(b.ctx, b.binding.values)
	default:
		alt.ApplyContext(b.ctx, value.NewMap())
	}
	return alt.State().Settled()
}

// ClearEmptyGroup deactivates the alternate.
func (b *Base) ClearEmptyGroup() {
	if b.slot.active == slotAlternate {
		b.slot.active = slotPrimary
		b.stateChanged = true
	}
}

func (b *Base) AddDependingKey(key string) {
	if key == "" {
		return
	}
	b.keys[key] = struct{}{}
}

func (b *Base) AffectedByKey(key string) bool {
	_, ok := b.keys[key]
	return ok
}

// DependingKeys returns the registered keys sorted.
func (b *Base) DependingKeys() []string {
	out := make([]string, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PropagateDependingKeys registers the keys of the given children on b.
func (b *Base) PropagateDependingKeys(children ...Controller) {
	for _, c := range children {
		for _, k := range c.DependingKeys() {
			b.AddDependingKey(k)
		}
	}
}

// valueForKey resolves a named value from the bound context, the bound row
// and finally the delegate.
func (b *Base) valueForKey(key string) (string, bool) {
	bare := strings.TrimPrefix(key, "$")
	switch b.binding.mode {
	case bindContext:
		if v, ok := b.binding.values.Get(key); ok {
			return v, true
		}
		if v, ok := b.binding.values.Get(bare); ok {
			return v, true
		}
	case bindRow:
		if row := b.binding.row; row != nil {
			switch bare {
			case "RecordID":
				return row.Ref.RecordID, true
			case "InfoArea":
				return row.Ref.InfoArea, true
			}
			if row.Has(bare) {
				return row.Value(bare), true
			}
		}
	}
	if b.delegate != nil {
		return b.delegate.ValueForKey(b.self, key)
	}
	return "", false
}

func (b *Base) valueChanged(v value.Field) {
	if b.delegate != nil {
		b.delegate.ValueChanged(b.self, v)
	}
}

// Navigate asks the delegate to open target.
func (b *Base) Navigate(nav Navigation) {
	if b.delegate != nil {
		b.delegate.PerformNavigation(b.self, nav)
	}
}

// alternateDelegate receives the callbacks of an alternate controller and
// forwards them upward as if they came from the primary.
type alternateDelegate struct {
	b *Base
}

func (d alternateDelegate) Finished(c Controller) {
	if d.b.activeAlternate() != c {
		return
	}
	d.b.stateChanged = true
	d.b.signal()
}

func (d alternateDelegate) ValueChanged(_ Controller, v value.Field) { d.b.valueChanged(v) }

func (d alternateDelegate) PerformNavigation(_ Controller, nav Navigation) { d.b.Navigate(nav) }

func (d alternateDelegate) ValueForKey(_ Controller, key string) (string, bool) {
	return d.b.valueForKey(key)
}
