package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/matthewbaird/recordview/internal/eventbus"
	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// recordingDelegate captures every callback a controller makes.
type recordingDelegate struct {
	finished []Controller
	values   []value.Field
	navs     []Navigation
	keys     map[string]string
}

func (d *recordingDelegate) Finished(c Controller) { d.finished = append(d.finished, c) }

func (d *recordingDelegate) ValueChanged(_ Controller, v value.Field) {
	d.values = append(d.values, v)
}

func (d *recordingDelegate) PerformNavigation(_ Controller, nav Navigation) {
	d.navs = append(d.navs, nav)
}

func (d *recordingDelegate) ValueForKey(_ Controller, key string) (string, bool) {
	v, ok := d.keys[key]
	return v, ok
}

// fixture wires controllers to in-memory sources. Remote finds run inline
// and their completions wait on the bus until drain is called.
type fixture struct {
	reg    *spec.Registry
	bus    *eventbus.Bus
	local  *query.MemorySource
	remote *query.MemorySource
	deps   Deps
}

func newFixture(t *testing.T, tabs ...*spec.TabSpec) *fixture {
	t.Helper()
	reg := spec.NewRegistry()
	for _, tab := range tabs {
		reg.RegisterTab(tab)
	}
	bus := eventbus.New()
	local := query.NewMemorySource()
	remote := query.NewMemorySource()
	engine := query.NewEngine(local, remote, bus, query.WithSpawn(func(fn func()) { fn() }))
	return &fixture{
		reg:    reg,
		bus:    bus,
		local:  local,
		remote: remote,
		deps:   Deps{Specs: reg, Engine: engine},
	}
}

func (f *fixture) drain() int { return f.bus.RunPending() }

type fakeOffline struct {
	rows   map[record.Ref]*record.Row
	queued bool
}

func (o fakeOffline) OfflineRecord(_ context.Context, ref record.Ref) (*record.Row, bool) {
	r, ok := o.rows[ref]
	return r, ok
}

func (o fakeOffline) HasQueuedChildren(context.Context, record.Ref, string) bool { return o.queued }

func company(id, name, country string) *record.Row {
	return record.NewRow(record.Ref{InfoArea: "FI", RecordID: id}, map[string]string{
		"Name":    name,
		"Country": country,
	})
}

func contact(id, companyID, name string) *record.Row {
	r := record.NewRow(record.Ref{InfoArea: "KP", RecordID: id}, map[string]string{"Name": name})
	r.Links = []record.Link{{Target: record.Ref{InfoArea: "FI", RecordID: companyID}}}
	return r
}

func companyListTab(option string) *spec.TabSpec {
	return &spec.TabSpec{
		Name:          "Companies",
		Type:          spec.TypeList,
		InfoArea:      "FI",
		RequestOption: option,
		MaxResults:    10,
		Fields:        []spec.FieldSpec{{Name: "Name"}, {Name: "Country"}},
	}
}

func connectivityFailure() error {
	return &query.ConnectivityError{Op: "find", Err: errors.New("dial tcp: connection refused")}
}

// stubController settles with a fixed outcome, either inside the apply
// call or later when the test calls complete.
type stubController struct {
	Base
	sortKey string
	outcome State
	sync    bool
	binds   int
}

func newStub(deps Deps, name, sortKey string, outcome State, sync bool) *stubController {
	s := &stubController{sortKey: sortKey, outcome: outcome, sync: sync}
	s.init(s, s, deps, &spec.TabSpec{Name: name, Type: spec.TypeDetail}, ModeView)
	return s
}

func (s *stubController) bind(context.Context, binding) {
	s.binds++
	if s.sync {
		s.complete()
	}
}

func (s *stubController) complete() {
	switch s.outcome {
	case Finished:
		g := group.New(group.KindItem, s.tab.Name)
		g.SortKey = s.sortKey
		s.finish(g)
	case Empty:
		s.empty()
	default:
		s.fail(errors.New("stub failure"))
	}
}

// permutations returns every ordering of 0..n-1.
func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}
