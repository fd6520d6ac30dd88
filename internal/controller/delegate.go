package controller

import (
	"context"

	"github.com/matthewbaird/recordview/internal/group"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/value"
)

// Navigation is a request to open another screen.
type Navigation struct {
	Target string
	Record record.Ref
	Values *value.Map
}

// Delegate receives the callbacks of a controller. The orchestrator is the
// delegate of the root controller; composites are the delegates of the
// controllers they own.
type Delegate interface {
	Finished(c Controller)
	ValueChanged(c Controller, v value.Field)
	PerformNavigation(c Controller, nav Navigation)
	ValueForKey(c Controller, key string) (string, bool)
}

// StateMachine exposes the lifecycle of a controller.
type StateMachine interface {
	ID() string
	State() State
	Group() *group.Group
	Err() error
	// ConsumeStateChanged reports whether the state was set since the last
	// call, clearing the flag.
	ConsumeStateChanged() bool
}

// Bindable is implemented by controllers that can be (re)bound to a row or
// to a context of named values. Both return the group when the binding
// settled synchronously, nil otherwise.
type Bindable interface {
	ApplyResultRow(ctx context.Context, row *record.Row) *group.Group
	ApplyContext(ctx context.Context, values *value.Map) *group.Group
	Reapply(ctx context.Context) *group.Group
	SetDelegate(d Delegate)
	ClearDelegate()
}

// DependencyAware is the re-render contract with the orchestrator.
type DependencyAware interface {
	AddDependingKey(key string)
	AffectedByKey(key string) bool
	DependingKeys() []string
}

// ChildOwning is implemented by composites.
type ChildOwning interface {
	Children() []Controller
}

// Controller is the capability set every controller provides.
type Controller interface {
	StateMachine
	Bindable
	DependencyAware
	Tab() *spec.TabSpec
	Mode() Mode
}

// OfflineLookup exposes locally queued, not yet synced changes.
type OfflineLookup interface {
	OfflineRecord(ctx context.Context, ref record.Ref) (*record.Row, bool)
	HasQueuedChildren(ctx context.Context, parent record.Ref, infoArea string) bool
}

// Deps are the collaborators injected into every controller.
type Deps struct {
	Specs   spec.Provider
	Engine  *query.Engine
	Offline OfflineLookup
}
