package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TypeOf returns the entity type key of obj: its Go type with one level of
// pointer removed.
func TypeOf(obj any) reflect.Type {
	t := reflect.TypeOf(obj)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Catalog is the registry of entity metadata and relationships. It is
// filled at startup and read concurrently afterwards.
type Catalog struct {
	mu            sync.RWMutex
	entities      map[reflect.Type]*Entity
	relationships map[reflect.Type][]Relationship
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entities:      map[reflect.Type]*Entity{},
		relationships: map[reflect.Type][]Relationship{},
	}
}

// Register adds entity metadata. Each Go type may be registered once.
func (c *Catalog) Register(entities ...*Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		if e == nil {
			return fmt.Errorf("register: nil entity")
		}
		if prev, ok := c.entities[e.Type]; ok {
			return fmt.Errorf("register %s: type %s already registered as %s", e.Name, e.Type, prev.Name)
		}
		c.entities[e.Type] = e
	}
	return nil
}

// Relate adds relationship descriptors. A (child, parent) pair may appear
// only once.
func (c *Catalog) Relate(rels ...Relationship) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rels {
		if r.Child == nil || r.Parent == nil || r.ForeignKey == "" {
			return fmt.Errorf("relate: incomplete relationship %+v", r)
		}
		for _, existing := range c.relationships[r.Child] {
			if existing.Parent == r.Parent {
				return fmt.Errorf("relate %s -> %s: already declared with column %q", r.Child, r.Parent, existing.ForeignKey)
			}
		}
		c.relationships[r.Child] = append(c.relationships[r.Child], r)
	}
	return nil
}

// Entity returns the metadata registered for t.
func (c *Catalog) Entity(t reflect.Type) (*Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[t]
	return e, ok
}

// EntityOf returns the metadata for the runtime type of obj.
func (c *Catalog) EntityOf(obj any) (*Entity, bool) {
	return c.Entity(TypeOf(obj))
}

// RelationshipsForChild returns the relationships of child type t in
// declaration order. The returned slice is a copy.
func (c *Catalog) RelationshipsForChild(t reflect.Type) []Relationship {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rels := c.relationships[t]
	if len(rels) == 0 {
		return nil
	}
	out := make([]Relationship, len(rels))
	copy(out, rels)
	return out
}

// Entities returns all registered entities ordered by name.
func (c *Catalog) Entities() []*Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
