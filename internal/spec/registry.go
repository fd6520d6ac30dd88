package spec

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a named spec is not registered.
var ErrNotFound = errors.New("spec: not found")

// Provider is the read-only configuration capability injected into every
// controller.
type Provider interface {
	Tab(name string) (*TabSpec, error)
	Filter(name string) (*FilterSpec, error)
	Catalog(name string) (*CatalogSpec, error)
	Menu(name string) (*MenuSpec, error)
}

// Registry holds all loaded specs. It is populated once at startup and is
// safe for concurrent read access afterwards.
type Registry struct {
	tabs     map[string]*TabSpec
	filters  map[string]*FilterSpec
	catalogs map[string]*CatalogSpec
	menus    map[string]*MenuSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tabs:     make(map[string]*TabSpec),
		filters:  make(map[string]*FilterSpec),
		catalogs: make(map[string]*CatalogSpec),
		menus:    make(map[string]*MenuSpec),
	}
}

// RegisterTab adds a tab spec, replacing any previous one of that name.
func (r *Registry) RegisterTab(t *TabSpec) { r.tabs[t.Name] = t }

// RegisterFilter adds a filter spec.
func (r *Registry) RegisterFilter(f *FilterSpec) { r.filters[f.Name] = f }

// RegisterCatalog adds a catalog spec.
func (r *Registry) RegisterCatalog(c *CatalogSpec) { r.catalogs[c.Name] = c }

// RegisterMenu adds a menu spec.
func (r *Registry) RegisterMenu(m *MenuSpec) { r.menus[m.Name] = m }

// Load registers every spec in the bundle after validating it.
func (r *Registry) Load(b Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	for i := range b.Tabs {
		r.RegisterTab(&b.Tabs[i])
	}
	for i := range b.Filters {
		r.RegisterFilter(&b.Filters[i])
	}
	for i := range b.Catalogs {
		r.RegisterCatalog(&b.Catalogs[i])
	}
	for i := range b.Menus {
		r.RegisterMenu(&b.Menus[i])
	}
	return nil
}

func (r *Registry) Tab(name string) (*TabSpec, error) {
	t, ok := r.tabs[name]
	if !ok {
		return nil, fmt.Errorf("tab %q: %w", name, ErrNotFound)
	}
	return t, nil
}

func (r *Registry) Filter(name string) (*FilterSpec, error) {
	f, ok := r.filters[name]
	if !ok {
		return nil, fmt.Errorf("filter %q: %w", name, ErrNotFound)
	}
	return f, nil
}

func (r *Registry) Catalog(name string) (*CatalogSpec, error) {
	c, ok := r.catalogs[name]
	if !ok {
		return nil, fmt.Errorf("catalog %q: %w", name, ErrNotFound)
	}
	return c, nil
}

func (r *Registry) Menu(name string) (*MenuSpec, error) {
	m, ok := r.menus[name]
	if !ok {
		return nil, fmt.Errorf("menu %q: %w", name, ErrNotFound)
	}
	return m, nil
}

// TabNames returns all registered tab names in sorted order.
func (r *Registry) TabNames() []string {
	names := make([]string, 0, len(r.tabs))
	for n := range r.tabs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the bundle for structural problems: unnamed specs,
// duplicates, and unknown tab types.
func (b Bundle) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, t := range b.Tabs {
		if t.Name == "" {
			errs = append(errs, errors.New("tab with empty name"))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate tab %q", t.Name))
		}
		seen[t.Name] = true
		if !knownTypes[t.NormalizedType()] {
			errs = append(errs, fmt.Errorf("tab %q: unknown type %q", t.Name, t.Type))
		}
		for _, f := range t.Fields {
			if f.Name == "" {
				errs = append(errs, fmt.Errorf("tab %q: field with empty name", t.Name))
			}
		}
	}
	for _, f := range b.Filters {
		if f.Name == "" {
			errs = append(errs, errors.New("filter with empty name"))
		}
	}
	return errors.Join(errs...)
}

var knownTypes = map[string]bool{
	TypeDetail:          true,
	TypeList:            true,
	TypeDocuments:       true,
	TypeCharacteristics: true,
	TypeContactTimes:    true,
	TypeMenu:            true,
	TypeParent:          true,
	TypeListInDetail:    true,
	TypeBoard:           true,
	TypeChildren:        true,
	TypeParticipants:    true,
}
