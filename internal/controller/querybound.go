package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// queryRunner executes one query per bind under a request option. A new
// run supersedes the previous one: its completion is dropped by
// generation, and the in-flight remote call is cancelled.
type queryRunner struct {
	b      *Base
	option query.RequestOption
	op     *query.Operation
	remote int
}

// run executes q and calls done with the outcome, synchronously for local
// results and from a posted completion otherwise. Connectivity failures
// are retried once against local data when the option allows it.
func (r *queryRunner) run(ctx context.Context, q query.Query, done func(*query.ResultSet, error)) {
	engine := r.b.deps.Engine
	if engine == nil {
		done(nil, errors.New("no query engine"))
		return
	}
	if r.op != nil {
		r.op.Cancel()
		r.op = nil
	}

	switch r.option {
	case query.Offline:
		done(engine.FindSync(ctx, q))
		return
	case query.FastestAvailable:
		rs, err := engine.FindSync(ctx, q)
		if err == nil && rs.Len() > 0 {
			done(rs, nil)
			return
		}
	}

	gen := r.b.gen
	option := r.option
	r.remote++
	r.op = engine.FindAsync(ctx, q, option, func(rs *query.ResultSet, err error) {
		if errors.Is(r.b.checkGeneration(gen), errStaleCallback) {
			return
		}
		r.op = nil
		if err != nil && query.IsConnectivity(err) && option.FallsBackToLocal() {
			rs, err = engine.FindSync(ctx, q)
		}
		done(rs, err)
	})
}

// RemoteCalls returns how many remote finds were issued.
func (r *queryRunner) RemoteCalls() int { return r.remote }

// buildQuery derives the query of tab for a binding: filter conditions
// with "$name" placeholders resolved, link scope to the bound row and the
// row cap. Every placeholder becomes a dependency key.
func (b *Base) buildQuery(bd binding) (query.Query, error) {
	q := query.Query{InfoArea: b.tab.InfoArea, MaxResults: b.tab.MaxResults}
	if q.InfoArea == "" {
		return q, &ConfigurationError{Tab: b.tab.Name, Reason: "query tab without info area"}
	}
	if b.tab.Filter != "" {
		if b.deps.Specs == nil {
			return q, &ConfigurationError{Tab: b.tab.Name, Reason: "no spec provider"}
		}
		f, err := b.deps.Specs.Filter(b.tab.Filter)
		if err != nil {
			return q, &ConfigurationError{Tab: b.tab.Name, Reason: "filter " + b.tab.Filter, Err: err}
		}
		for _, cs := range f.Conditions {
			v := cs.Value
			if strings.HasPrefix(v, "$") {
				b.AddDependingKey(v)
				v, _ = b.valueForKey(v)
			}
			q.Conditions = append(q.Conditions, query.Condition{Field: cs.Field, Op: cs.Op, Value: v})
		}
	}
	if bd.mode == bindRow && bd.row != nil && !bd.row.Ref.IsZero() {
		if bd.row.Ref.InfoArea == q.InfoArea && b.tab.LinkName == "" {
			q.RecordID = bd.row.Ref.RecordID
		} else {
			q.Link = &query.LinkScope{Name: b.tab.LinkName, Parent: bd.row.Ref}
		}
	}
	return q, nil
}

func (b *Base) requestOption() (query.RequestOption, error) {
	opt, err := query.ParseRequestOption(b.tab.RequestOption, query.BestAvailable)
	if err != nil {
		return opt, &ConfigurationError{Tab: b.tab.Name, Reason: "request option", Err: err}
	}
	return opt, nil
}

// ResultRenderer turns a non-empty result set into a group. Returning a
// nil group settles the controller as Empty.
type ResultRenderer interface {
	Render(rc *RenderContext, rs *query.ResultSet) (*group.Group, error)
}

// RenderContext is what a renderer may consult.
type RenderContext struct {
	Tab     *spec.TabSpec
	Specs   spec.Provider
	Options value.Options
	Link    record.Ref

	fields *fieldPipeline
}

// Fields classifies the view fields of row.
func (rc *RenderContext) Fields(row *record.Row) []*group.Field {
	return rc.fields.viewFields(valueSource{row: row})
}

// QueryBoundController runs the query of its tab and renders the result
// with a ResultRenderer.
type QueryBoundController struct {
	Base
	renderer ResultRenderer
	runner   queryRunner
	fields   *fieldPipeline
}

// NewQueryBoundController creates a query-bound controller for tab.
func NewQueryBoundController(deps Deps, tab *spec.TabSpec, mode Mode, renderer ResultRenderer) *QueryBoundController {
	c := &QueryBoundController{renderer: renderer, fields: newFieldPipeline(tab, deps.Specs)}
	c.init(c, c, deps, tab, mode)
	c.runner.b = &c.Base
	return c
}

// Bind runs the query scoped to link. It returns the group when data was
// obtained synchronously, nil otherwise.
func (c *QueryBoundController) Bind(ctx context.Context, link *record.Row) *group.Group {
	return c.ApplyResultRow(ctx, link)
}

// RemoteCalls returns how many remote finds the controller issued.
func (c *QueryBoundController) RemoteCalls() int { return c.runner.RemoteCalls() }

func (c *QueryBoundController) bind(ctx context.Context, bd binding) {
	opt, err := c.requestOption()
	if err != nil {
		c.fail(err)
		return
	}
	q, err := c.buildQuery(bd)
	if err != nil {
		c.fail(err)
		return
	}
	opts, err := value.OptionsFromMap(c.tab.Options)
	if err != nil {
		c.fail(&ConfigurationError{Tab: c.tab.Name, Reason: "options", Err: err})
		return
	}
	rc := &RenderContext{Tab: c.tab, Specs: c.deps.Specs, Options: opts, Link: boundRef(bd), fields: c.fields}

	c.runner.option = opt
	c.runner.run(ctx, q, func(rs *query.ResultSet, err error) {
		c.complete(rc, rs, err)
	})
}

func (c *QueryBoundController) complete(rc *RenderContext, rs *query.ResultSet, err error) {
	if err != nil {
		c.fail(fmt.Errorf("query %s: %w", c.tab.Name, err))
		return
	}
	if rs.Len() == 0 {
		c.empty()
		return
	}
	g, err := c.renderer.Render(rc, rs)
	if err != nil {
		c.fail(err)
		return
	}
	c.finish(g)
}
