// Package catalog defines the HR entities managed by the dashboard.
package catalog

import (
	"fmt"
	"sort"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// Catalog is an ordered, name-indexed set of entity definitions.
type Catalog struct {
	order  []string
	byName map[string]domain.Entity
}

// New builds a catalog from the given entities. Names must be unique.
func New(entities ...domain.Entity) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]domain.Entity, len(entities))}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		c.byName[e.Name] = e
		c.order = append(c.order, e.Name)
	}
	for _, e := range entities {
		for _, f := range e.Fields {
			if f.Ref == "" {
				continue
			}
			if _, ok := c.byName[f.Ref]; !ok {
				return nil, fmt.Errorf("entity %q: field %q references unknown entity %q", e.Name, f.Name, f.Ref)
			}
		}
	}
	return c, nil
}

// Lookup returns the entity registered under name.
func (c *Catalog) Lookup(name string) (domain.Entity, error) {
	e, ok := c.byName[name]
	if !ok {
		return domain.Entity{}, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, name)
	}
	return e, nil
}

// All returns the entities in registration order.
func (c *Catalog) All() []domain.Entity {
	out := make([]domain.Entity, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Names returns the entity names sorted alphabetically.
func (c *Catalog) Names() []string {
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// ReferrersOf lists the fields that hold ids of the named entity.
func (c *Catalog) ReferrersOf(name string) []domain.Reference {
	var refs []domain.Reference
	for _, n := range c.order {
		for _, f := range c.byName[n].Fields {
			if f.Ref == name {
				refs = append(refs, domain.Reference{Entity: n, Field: f.Name})
			}
		}
	}
	return refs
}
