package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

func companyDetailTab() *spec.TabSpec {
	return &spec.TabSpec{
		Name:     "CompanyDetail",
		Type:     spec.TypeDetail,
		InfoArea: "FI",
		Fields:   []spec.FieldSpec{{Name: "Name"}, {Name: "Country"}},
	}
}

func TestBase_DependingKeys(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)

	c.AddDependingKey("$X")
	c.AddDependingKey("")
	assert.True(t, c.AffectedByKey("$X"))
	assert.False(t, c.AffectedByKey("$Y"))
	assert.Equal(t, []string{"$X"}, c.DependingKeys())
}

func TestBase_StartsPendingAndConsumesChangeOnce(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)
	assert.Equal(t, Pending, c.State())
	assert.Nil(t, c.Group())

	g := c.ApplyResultRow(context.Background(), company("1", "ACME", "AT"))
	require.NotNil(t, g)
	assert.Equal(t, Finished, c.State())
	assert.Same(t, g, c.Group())
	assert.True(t, c.ConsumeStateChanged())
	assert.False(t, c.ConsumeStateChanged())
}

func TestBase_SynchronousSettlementIsNotSignalled(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)
	d := &recordingDelegate{}
	c.SetDelegate(d)

	require.NotNil(t, c.ApplyResultRow(context.Background(), company("1", "ACME", "AT")))
	assert.Empty(t, d.finished)
}

func TestBase_RemembersLastBinding(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)
	ctx := context.Background()

	c.ApplyContext(ctx, value.NewMap(value.F("Name", "From context")))
	assert.Nil(t, c.BoundRow())
	require.NotNil(t, c.BoundValues())

	c.ApplyResultRow(ctx, company("1", "ACME", "AT"))
	assert.Nil(t, c.BoundValues())
	require.NotNil(t, c.BoundRow())

	g := c.Reapply(ctx)
	require.NotNil(t, g)
	assert.Equal(t, "ACME", g.Field("Name").Value)
}

func TestBase_NoValuesSettlesEmpty(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)

	g := c.ApplyContext(context.Background(), nil)
	assert.Nil(t, g)
	assert.Equal(t, Empty, c.State())
	assert.Nil(t, c.Group())
}

func TestBase_ClearDelegateSilencesCallbacks(t *testing.T) {
	f := newFixture(t)
	f.remote.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"))
	c := NewQueryBoundController(f.deps, companyListTab("online"), ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)

	assert.Nil(t, c.ApplyContext(context.Background(), nil))
	c.ClearDelegate()
	f.drain()

	assert.Empty(t, d.finished)
	assert.Equal(t, Finished, c.State())
}

func TestBase_ValueForKeyResolution(t *testing.T) {
	f := newFixture(t)
	c := NewDetailController(f.deps, companyDetailTab(), ModeView)
	d := &recordingDelegate{keys: map[string]string{"$Owner": "u1"}}
	c.SetDelegate(d)
	ctx := context.Background()

	c.ApplyContext(ctx, value.NewMap(value.F("Country", "AT")))
	v, ok := c.valueForKey("$Country")
	assert.True(t, ok)
	assert.Equal(t, "AT", v)

	c.ApplyResultRow(ctx, company("7", "ACME", "AT"))
	v, _ = c.valueForKey("$RecordID")
	assert.Equal(t, "7", v)
	v, _ = c.valueForKey("$Name")
	assert.Equal(t, "ACME", v)
	v, _ = c.valueForKey("$Owner")
	assert.Equal(t, "u1", v)
	_, ok = c.valueForKey("$Missing")
	assert.False(t, ok)
}

func TestAlternate_ActivatesSynchronously(t *testing.T) {
	f := newFixture(t)
	primary := NewQueryBoundController(f.deps, companyListTab("offline"), ModeView, ListRenderer{})
	alt := NewDetailController(f.deps, companyDetailTab(), ModeView)
	primary.SetAlternate(alt)
	d := &recordingDelegate{}
	primary.SetDelegate(d)

	g := primary.ApplyContext(context.Background(), value.NewMap(value.F("Name", "From context")))
	require.NotNil(t, g)
	assert.True(t, primary.AlternateActive())
	assert.Equal(t, Finished, primary.State())
	assert.Same(t, alt.Group(), g)
	assert.Equal(t, "From context", g.Field("Name").Value)
	assert.Empty(t, d.finished)

	primary.ClearEmptyGroup()
	assert.False(t, primary.AlternateActive())
	assert.Equal(t, Empty, primary.State())
	assert.Nil(t, primary.Group())
}

func TestAlternate_ActivatesAsynchronously(t *testing.T) {
	remoteTab := companyListTab("online")
	remoteTab.Name = "RemoteCompanies"
	f := newFixture(t)
	f.remote.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"))

	primary := NewQueryBoundController(f.deps, companyListTab("offline"), ModeView, ListRenderer{})
	alt := NewQueryBoundController(f.deps, remoteTab, ModeView, ListRenderer{})
	primary.SetAlternate(alt)
	d := &recordingDelegate{}
	primary.SetDelegate(d)

	assert.Nil(t, primary.ApplyContext(context.Background(), nil))
	assert.True(t, primary.AlternateActive())
	assert.Equal(t, Pending, primary.State())

	f.drain()
	require.Len(t, d.finished, 1)
	assert.Same(t, primary, d.finished[0])
	assert.Equal(t, Finished, primary.State())
	require.NotNil(t, primary.Group())
	assert.Len(t, primary.Group().Children, 2)
}

func TestAlternate_RebindRestoresPrimary(t *testing.T) {
	f := newFixture(t)
	primary := NewQueryBoundController(f.deps, companyListTab("offline"), ModeView, ListRenderer{})
	primary.SetAlternate(NewDetailController(f.deps, companyDetailTab(), ModeView))
	ctx := context.Background()

	primary.ApplyContext(ctx, value.NewMap(value.F("Name", "From context")))
	require.True(t, primary.AlternateActive())

	f.local.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"))
	g := primary.ApplyContext(ctx, nil)
	require.NotNil(t, g)
	assert.False(t, primary.AlternateActive())
	assert.Equal(t, group.KindList, g.Kind)
}

func TestFinishedAlwaysCarriesGroup(t *testing.T) {
	f := newFixture(t)
	f.local.Put(company("1", "ACME", "AT"))
	ctx := context.Background()
	controllers := []Controller{
		NewDetailController(f.deps, companyDetailTab(), ModeView),
		NewQueryBoundController(f.deps, companyListTab("offline"), ModeView, ListRenderer{}),
		NewQueryBoundController(f.deps, companyListTab("fastest"), ModeView, DocumentRenderer{}),
	}
	for _, c := range controllers {
		c.ApplyResultRow(ctx, company("1", "ACME", "AT"))
		if c.State() == Finished {
			assert.NotNil(t, c.Group(), c.Tab().Name)
		} else {
			assert.Nil(t, c.Group(), c.Tab().Name)
		}
	}
}
