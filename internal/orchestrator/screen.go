// Package orchestrator owns screens: a root controller tree bound to a
// record or to a context of named values, the named values the tree
// depends on, and the save path from edit contexts to persistence.
//
// A Screen is not safe for concurrent use. Every method, and every
// controller callback it receives, runs on the bus thread.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/controller"
	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/persist"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/value"
)

// ErrNoDetail is returned by field commands on screens without a detail
// controller.
var ErrNoDetail = errors.New("orchestrator: screen has no detail controller")

// ErrUnknownChildSet is returned when no child set renders the named tab.
var ErrUnknownChildSet = errors.New("orchestrator: unknown child set")

// Saver persists the operations of a save.
type Saver interface {
	Save(ctx context.Context, ops []record.Operation) (persist.Outcome, error)
}

// Listener observes a screen. Callbacks run on the bus thread.
type Listener interface {
	Settled(s *Screen)
	ValueChanged(s *Screen, v value.Field)
	Navigate(s *Screen, nav controller.Navigation)
}

// Options configure a Screen.
type Options struct {
	Mode     controller.Mode
	Saver    Saver
	Recorder event.Recorder
	Scope    tally.Scope
	Listener Listener
}

// Screen is the delegate of one root controller.
type Screen struct {
	id       string
	tab      string
	mode     controller.Mode
	root     controller.Controller
	values   *value.Map
	row      *record.Row
	ctx      context.Context
	saver    Saver
	recorder event.Recorder
	listener Listener
	metrics  metrics
}

// New builds the controller tree for tabName. Configuration problems do
// not fail here; the root settles in Error once opened.
func New(factory *controller.Factory, tabName string, opts Options) *Screen {
	s := &Screen{
		id:       uuid.New().String(),
		tab:      tabName,
		mode:     opts.Mode,
		values:   value.NewMap(),
		ctx:      context.Background(),
		saver:    opts.Saver,
		recorder: opts.Recorder,
		listener: opts.Listener,
		metrics:  newMetrics(opts.Scope),
	}
	if s.recorder == nil {
		s.recorder = event.Discard
	}
	s.root = factory.New(tabName, opts.Mode)
	s.root.SetDelegate(s)
	return s
}

// ID returns the screen id.
func (s *Screen) ID() string { return s.id }

// Mode returns the pipeline the screen was opened with.
func (s *Screen) Mode() controller.Mode { return s.mode }

// Root returns the root controller.
func (s *Screen) Root() controller.Controller { return s.root }

// State returns the state of the root controller.
func (s *Screen) State() controller.State { return s.root.State() }

// Group returns the group of the root controller.
func (s *Screen) Group() *group.Group { return s.root.Group() }

// Err returns the error of the root controller.
func (s *Screen) Err() error { return s.root.Err() }

// Values returns a copy of the named values.
func (s *Screen) Values() *value.Map { return s.values.Clone() }

// Record returns the ref the screen is bound to, or the ref of the page
// being created.
func (s *Screen) Record() record.Ref {
	if d := s.Detail(); d != nil && d.Page() != nil {
		return d.Page().Ref
	}
	if s.row != nil {
		return s.row.Ref
	}
	return record.Ref{}
}

// OpenRecord binds the root controller to row. It returns the group when
// the tree settled synchronously.
func (s *Screen) OpenRecord(ctx context.Context, row *record.Row) *group.Group {
	s.ctx = ctx
	s.row = row
	if row != nil {
		s.values.Set("$RecordId", row.Ref.RecordID)
		s.values.Set("$InfoArea", row.Ref.InfoArea)
	}
	s.opened(ctx)
	return s.settleSync(s.root.ApplyResultRow(ctx, row))
}

// OpenContext binds the root controller to named values, which also
// become the screen's named values.
func (s *Screen) OpenContext(ctx context.Context, values *value.Map) *group.Group {
	s.ctx = ctx
	s.row = nil
	if values != nil {
		s.values.Merge(values, true)
	}
	s.opened(ctx)
	return s.settleSync(s.root.ApplyContext(ctx, s.values.Clone()))
}

func (s *Screen) opened(ctx context.Context) {
	s.record(ctx, event.NewScreenOpened(s.id, s.boundRef(), event.ScreenOpenedPayload{
		Tab:  s.tab,
		Mode: s.mode.String(),
	}))
}

func (s *Screen) boundRef() record.Ref {
	if s.row != nil {
		return s.row.Ref
	}
	return record.Ref{}
}

// settleSync reports a synchronous settlement, which controllers do not
// signal through Finished.
func (s *Screen) settleSync(g *group.Group) *group.Group {
	if s.root.State().Settled() && s.root.ConsumeStateChanged() {
		s.settled(s.root)
	}
	return g
}

// SetValue changes a named value and re-applies the controllers that
// depend on it. It returns how many controllers were re-applied.
func (s *Screen) SetValue(ctx context.Context, key, v string) int {
	s.ctx = ctx
	if old, ok := s.values.Get(key); ok && old == v {
		return 0
	}
	s.values.Set(key, v)
	return s.reapplyAffected(ctx, key, nil)
}

// reapplyAffected re-applies the outermost controllers affected by key,
// skipping source. Composites carry the keys of their children, so an
// affected composite is re-applied as a whole.
func (s *Screen) reapplyAffected(ctx context.Context, key string, source controller.Controller) int {
	n := 0
	var visit func(c controller.Controller)
	visit = func(c controller.Controller) {
		if c != source && affected(c, key) {
			n++
			if c != s.root {
				c.Reapply(ctx)
				return
			}
			// A root bound to a context is rebound with the current
			// values, which take precedence over the stale binding.
			if s.row == nil {
				s.settleSync(c.ApplyContext(ctx, s.values.Clone()))
			} else {
				s.settleSync(c.Reapply(ctx))
			}
			return
		}
		for _, child := range children(c) {
			visit(child)
		}
	}
	visit(s.root)
	s.metrics.reapplied(n)
	return n
}

func affected(c controller.Controller, key string) bool {
	bare := strings.TrimPrefix(key, "$")
	return c.AffectedByKey(bare) || c.AffectedByKey("$"+bare)
}

// Finished implements controller.Delegate.
func (s *Screen) Finished(c controller.Controller) {
	if c != s.root {
		return
	}
	c.ConsumeStateChanged()
	s.settled(c)
}

func (s *Screen) settled(c controller.Controller) {
	s.metrics.settled(c)
	p := event.StateChangedPayload{
		ControllerID: c.ID(),
		Tab:          tabName(c),
		State:        c.State().String(),
	}
	if err := c.Err(); err != nil {
		p.Error = err.Error()
		log.Printf("orchestrator: screen %s: %s settled with error: %v", s.id, p.Tab, err)
	}
	s.record(s.ctx, event.NewStateChanged(s.id, s.Record(), p))
	if s.listener != nil {
		s.listener.Settled(s)
	}
}

// ValueChanged implements controller.Delegate. The value becomes a named
// value of the screen and the controllers depending on it are re-applied.
func (s *Screen) ValueChanged(c controller.Controller, v value.Field) {
	s.values.Set(v.Name, v.Value)
	allFilled := true
	if d := s.Detail(); d != nil {
		allFilled = d.MustFieldsFilled()
	}
	for _, cs := range s.ChildSets() {
		allFilled = allFilled && cs.MustFieldsFilled()
	}
	s.record(s.ctx, event.NewValueChanged(s.id, s.Record(), event.ValueChangedPayload{
		Field:     v.Name,
		AllFilled: allFilled,
	}))
	s.reapplyAffected(s.ctx, v.Name, c)
	if s.listener != nil {
		s.listener.ValueChanged(s, v)
	}
}

// PerformNavigation implements controller.Delegate.
func (s *Screen) PerformNavigation(_ controller.Controller, nav controller.Navigation) {
	p := event.NavigationPayload{Target: nav.Target}
	if nav.Values != nil {
		p.Values = nav.Values.Strings()
	}
	s.record(s.ctx, event.NewNavigation(s.id, nav.Record, p))
	if s.listener != nil {
		s.listener.Navigate(s, nav)
	}
}

// ValueForKey implements controller.Delegate.
func (s *Screen) ValueForKey(_ controller.Controller, key string) (string, bool) {
	if v, ok := s.values.Get(key); ok {
		return v, true
	}
	if bare := strings.TrimPrefix(key, "$"); bare != key {
		return s.values.Get(bare)
	}
	return s.values.Get("$" + key)
}

// Detail returns the first detail controller of the tree, or nil.
func (s *Screen) Detail() *controller.DetailController {
	var found *controller.DetailController
	walk(s.root, func(c controller.Controller) bool {
		if d, ok := c.(*controller.DetailController); ok {
			found = d
			return false
		}
		return true
	})
	return found
}

// ChildSets returns the child-set controllers of the tree in tree order.
func (s *Screen) ChildSets() []*controller.ChildSetController {
	var out []*controller.ChildSetController
	walk(s.root, func(c controller.Controller) bool {
		if cs, ok := c.(*controller.ChildSetController); ok {
			out = append(out, cs)
		}
		return true
	})
	return out
}

// ChildSet returns the child set rendering tabName.
func (s *Screen) ChildSet(tabName string) (*controller.ChildSetController, error) {
	for _, cs := range s.ChildSets() {
		if cs.Tab() != nil && cs.Tab().Name == tabName {
			return cs, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", tabName, ErrUnknownChildSet)
}

// SetFieldValue edits a field of the detail page.
func (s *Screen) SetFieldValue(field, v string) (bool, error) {
	d := s.Detail()
	if d == nil {
		return false, ErrNoDetail
	}
	return d.SetFieldValue(field, v)
}

// InsertChild adds a child to the named child set.
func (s *Screen) InsertChild(ctx context.Context, tabName string, initial *value.Map) (*edit.ChildContext, error) {
	cs, err := s.ChildSet(tabName)
	if err != nil {
		return nil, err
	}
	return cs.InsertChild(ctx, initial)
}

// DeleteChild removes or marks a child of the named child set.
func (s *Screen) DeleteChild(tabName, childID string) error {
	cs, err := s.ChildSet(tabName)
	if err != nil {
		return err
	}
	return cs.DeleteChild(childID)
}

// SetChildFieldValue edits a field of one child.
func (s *Screen) SetChildFieldValue(tabName, childID, field, v string) (bool, error) {
	cs, err := s.ChildSet(tabName)
	if err != nil {
		return false, err
	}
	return cs.SetChildFieldValue(childID, field, v)
}

// Violations aggregates the violations of the detail page and every
// child set.
func (s *Screen) Violations() []edit.Violation {
	var page *edit.Page
	var out []edit.Violation
	if d := s.Detail(); d != nil {
		page = d.Page()
		out = append(out, d.Violations(page)...)
	}
	for _, cs := range s.ChildSets() {
		out = append(out, cs.Violations(page)...)
	}
	return out
}

// Validate returns the violations as a *edit.ValidationError, or nil.
func (s *Screen) Validate() error {
	return edit.AsError(s.Violations())
}

// ChangedRecords collects the operations a save would perform: the detail
// page first so new parents exist before their children, then every
// child set diffed against the page.
func (s *Screen) ChangedRecords() []record.Operation {
	var ops []record.Operation
	parent := record.Ref{}
	parentNew := false
	var parentValues *value.Map
	if d := s.Detail(); d != nil {
		if op, ok := d.ChangedRecord(); ok {
			ops = append(ops, op)
		}
		if p := d.Page(); p != nil {
			parent, parentNew = p.Ref, p.New
		}
		parentValues = d.Values()
	}
	for _, cs := range s.ChildSets() {
		ops = append(ops, cs.ChangedRecordsForParent(parent, parentNew, parentValues)...)
	}
	return ops
}

// Save validates the screen and persists its changes. A screen without
// changes saves nothing and returns a zero outcome.
func (s *Screen) Save(ctx context.Context) (persist.Outcome, error) {
	if !s.mode.Editing() {
		return persist.Outcome{}, controller.ErrNotEditing
	}
	root := s.Record()
	if err := s.Validate(); err != nil {
		s.metrics.rejected()
		p := event.SaveRejectedPayload{Reason: "validation failed"}
		var ve *edit.ValidationError
		if errors.As(err, &ve) {
			for _, v := range ve.Violations {
				p.Violations = append(p.Violations, v.Field+": "+v.Code)
			}
		}
		s.record(ctx, event.NewSaveRejected(s.id, root, p))
		return persist.Outcome{}, err
	}
	ops := s.ChangedRecords()
	if len(ops) == 0 {
		return persist.Outcome{}, nil
	}
	if s.saver == nil {
		return persist.Outcome{}, errors.New("orchestrator: screen has no saver")
	}

	start := time.Now()
	out, err := s.saver.Save(ctx, ops)
	if err != nil {
		s.metrics.failed()
		s.record(ctx, event.NewSaveRejected(s.id, root, event.SaveRejectedPayload{Reason: err.Error()}))
		return out, fmt.Errorf("saving %s: %w", root, err)
	}
	s.metrics.saved(len(ops), out.Offline, time.Since(start))

	p := event.RecordsSavedPayload{Offline: out.Offline}
	var affected []record.Ref
	for _, op := range ops {
		switch op.Kind {
		case record.OpCreate:
			p.Creates++
		case record.OpUpdate:
			p.Updates++
		case record.OpDelete:
			p.Deletes++
		}
		if op.Ref != root {
			affected = append(affected, op.Ref)
		}
	}
	s.record(ctx, event.NewRecordsSaved(s.id, root, affected, p))
	if out.Offline {
		s.record(ctx, event.NewOfflineQueued(s.id, root, event.OfflineQueuedPayload{
			RequestID:  out.RequestID,
			Operations: len(ops),
		}))
	}
	return out, nil
}

func (s *Screen) record(ctx context.Context, evt event.DomainEvent) {
	if err := s.recorder.Record(ctx, evt); err != nil {
		log.Printf("orchestrator: event recording failed: %v", err)
	}
}

// Close detaches the screen from its controllers so late completions are
// dropped.
func (s *Screen) Close() {
	s.root.ClearDelegate()
	s.listener = nil
}

// children lists the controllers owned by c, including an alternate.
func children(c controller.Controller) []controller.Controller {
	var out []controller.Controller
	if co, ok := c.(controller.ChildOwning); ok {
		out = append(out, co.Children()...)
	}
	if alt, ok := c.(interface{ Alternate() controller.Controller }); ok {
		if a := alt.Alternate(); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// walk visits c and its descendants depth first until fn returns false.
func walk(c controller.Controller, fn func(controller.Controller) bool) bool {
	if c == nil {
		return true
	}
	if !fn(c) {
		return false
	}
	for _, child := range children(c) {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}
