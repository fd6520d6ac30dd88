package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

func TestQueryBound_FastestServesLocalRows(t *testing.T) {
	f := newFixture(t)
	f.local.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"), company("3", "Initech", "AT"))
	f.remote.Put(company("9", "Remote", "US"))
	c := NewQueryBoundController(f.deps, companyListTab("fastest"), ModeView, ListRenderer{})

	g := c.ApplyContext(context.Background(), nil)
	require.NotNil(t, g)
	assert.Equal(t, Finished, c.State())
	assert.Equal(t, group.KindList, g.Kind)
	assert.Len(t, g.Children, 3)
	assert.Equal(t, 0, c.RemoteCalls())
	assert.Equal(t, 0, f.remote.Finds())
}

func TestQueryBound_FastestGoesRemoteWhenLocalEmpty(t *testing.T) {
	f := newFixture(t)
	f.remote.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"))
	c := NewQueryBoundController(f.deps, companyListTab("fastest"), ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)

	assert.Nil(t, c.ApplyContext(context.Background(), nil))
	assert.Equal(t, Pending, c.State())

	f.drain()
	require.Len(t, d.finished, 1)
	assert.Equal(t, Finished, c.State())
	assert.Equal(t, 1, c.RemoteCalls())
}

func TestQueryBound_BestFallsBackOnConnectivityFailure(t *testing.T) {
	f := newFixture(t)
	f.local.Put(company("1", "ACME", "AT"))
	f.remote.FailWith(connectivityFailure())
	c := NewQueryBoundController(f.deps, companyListTab("best"), ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)

	assert.Nil(t, c.ApplyContext(context.Background(), nil))
	f.drain()

	require.Len(t, d.finished, 1)
	assert.Equal(t, Finished, c.State())
	require.NotNil(t, c.Group())
	assert.Equal(t, group.KindDetail, c.Group().Kind)
	assert.Equal(t, "ACME", c.Group().Field("Name").Value)
	assert.Equal(t, 1, f.local.Finds())
}

func TestQueryBound_OtherRemoteErrorsFail(t *testing.T) {
	f := newFixture(t)
	f.local.Put(company("1", "ACME", "AT"))
	f.remote.FailWith(errors.New("remote: status 500"))
	c := NewQueryBoundController(f.deps, companyListTab("best"), ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)

	c.ApplyContext(context.Background(), nil)
	f.drain()

	require.Len(t, d.finished, 1)
	assert.Equal(t, Error, c.State())
	assert.ErrorContains(t, c.Err(), "status 500")
	assert.Nil(t, c.Group())
	assert.Equal(t, 0, f.local.Finds())
}

func TestQueryBound_OnlineNeverFallsBack(t *testing.T) {
	f := newFixture(t)
	f.local.Put(company("1", "ACME", "AT"))
	f.remote.FailWith(connectivityFailure())
	c := NewQueryBoundController(f.deps, companyListTab("online"), ModeView, ListRenderer{})

	c.ApplyContext(context.Background(), nil)
	f.drain()

	assert.Equal(t, Error, c.State())
	assert.True(t, query.IsConnectivity(c.Err()))
	assert.Equal(t, 0, f.local.Finds())
}

func TestQueryBound_ZeroRowsSignalsEmpty(t *testing.T) {
	f := newFixture(t)
	c := NewQueryBoundController(f.deps, companyListTab("online"), ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)

	c.ApplyContext(context.Background(), nil)
	f.drain()

	require.Len(t, d.finished, 1)
	assert.Equal(t, Empty, c.State())
	assert.Nil(t, c.Group())
}

func TestQueryBound_RebindDropsStaleCompletion(t *testing.T) {
	tab := companyListTab("online")
	tab.Filter = "ByCountry"
	f := newFixture(t)
	f.reg.RegisterFilter(&spec.FilterSpec{
		Name:       "ByCountry",
		Conditions: []spec.ConditionSpec{{Field: "Country", Value: "$Country"}},
	})
	f.remote.Put(company("1", "ACME", "AT"), company("2", "Globex", "DE"))
	c := NewQueryBoundController(f.deps, tab, ModeView, ListRenderer{})
	d := &recordingDelegate{}
	c.SetDelegate(d)
	ctx := context.Background()

	c.ApplyContext(ctx, value.NewMap(value.F("Country", "AT")))
	c.ApplyContext(ctx, value.NewMap(value.F("Country", "DE")))
	assert.Equal(t, 2, f.drain())

	require.Len(t, d.finished, 1)
	require.NotNil(t, c.Group())
	assert.Equal(t, "Globex", c.Group().Field("Name").Value)
	assert.True(t, c.AffectedByKey("$Country"))
}

func TestQueryBound_LinkScopeFollowsBoundRow(t *testing.T) {
	tab := &spec.TabSpec{
		Name:          "Contacts",
		Type:          spec.TypeList,
		InfoArea:      "KP",
		RequestOption: "offline",
		Fields:        []spec.FieldSpec{{Name: "Name"}},
	}
	f := newFixture(t)
	f.local.Put(contact("10", "1", "Ann"), contact("11", "2", "Bob"), contact("12", "1", "Cid"))
	c := NewQueryBoundController(f.deps, tab, ModeView, ListRenderer{})

	g := c.Bind(context.Background(), company("1", "ACME", "AT"))
	require.NotNil(t, g)
	require.Len(t, g.Children, 2)
	assert.Equal(t, "Ann", g.Children[0].Label)
	assert.Equal(t, "Cid", g.Children[1].Label)
	assert.NotNil(t, g.Children[0].Action("open"))
}

func TestQueryBound_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	bad := companyListTab("sometimes")
	f := newFixture(t)
	c := NewQueryBoundController(f.deps, bad, ModeView, ListRenderer{})
	assert.Nil(t, c.ApplyContext(ctx, nil))
	assert.Equal(t, Error, c.State())
	assert.True(t, IsConfiguration(c.Err()))

	noArea := companyListTab("offline")
	noArea.InfoArea = ""
	c = NewQueryBoundController(f.deps, noArea, ModeView, ListRenderer{})
	c.ApplyContext(ctx, nil)
	assert.True(t, IsConfiguration(c.Err()))

	unknownFilter := companyListTab("offline")
	unknownFilter.Filter = "Nope"
	c = NewQueryBoundController(f.deps, unknownFilter, ModeView, ListRenderer{})
	c.ApplyContext(ctx, nil)
	assert.True(t, IsConfiguration(c.Err()))
	assert.ErrorIs(t, c.Err(), spec.ErrNotFound)
}

func TestQueryBound_MaxResultsCapsRows(t *testing.T) {
	tab := companyListTab("offline")
	tab.MaxResults = 2
	f := newFixture(t)
	f.local.Put(company("1", "A", "AT"), company("2", "B", "AT"), company("3", "C", "AT"))
	c := NewQueryBoundController(f.deps, tab, ModeView, ListRenderer{})

	g := c.ApplyContext(context.Background(), nil)
	require.NotNil(t, g)
	assert.Len(t, g.Children, 2)
}
