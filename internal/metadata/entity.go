package metadata

import (
	"fmt"
	"reflect"
)

// Field describes one persistent attribute: the attribute name, the type that
// declares it, and the column it is written to.
type Field struct {
	Name      string
	Declaring reflect.Type
	Column    string
}

// Relationship links a child entity type to a parent type through a foreign
// key column on the child's row.
type Relationship struct {
	Child      reflect.Type
	Parent     reflect.Type
	ForeignKey string
}

// Relation builds a Relationship from the child and parent Go types.
func Relation[Child, Parent any](foreignKey string) Relationship {
	return Relationship{
		Child:      reflect.TypeFor[Child](),
		Parent:     reflect.TypeFor[Parent](),
		ForeignKey: foreignKey,
	}
}

// Group is a declared substructure of an entity. Fields declared by the
// group's type are stored as columns of the owning entity's row.
type Group struct {
	Name      string
	Type      reflect.Type
	owner     reflect.Type
	read      func(owner any) (any, error)
	accessors map[string]Accessor
	optional  bool
}

// Embedded declares that *T holds a G reachable through fn.
func Embedded[T, G any](name string, fn func(*T) *G) Group {
	ownerType := reflect.TypeFor[*T]()
	return Group{
		Name:  name,
		Type:  reflect.TypeFor[G](),
		owner: ownerType,
		read: func(owner any) (any, error) {
			o, ok := owner.(*T)
			if !ok || o == nil {
				return nil, fmt.Errorf("%w: group %s on %T", ErrAccess, name, owner)
			}
			g := fn(o)
			if g == nil {
				return nil, nil
			}
			return g, nil
		},
	}
}

// Optional lets the group be unset: its columns are then written as null
// instead of failing the build.
func (g Group) Optional() Group {
	g.optional = true
	return g
}

// Read returns the substructure held by owner. An unset group is nil for an
// optional group and ErrAccess otherwise.
func (g *Group) Read(owner any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: group %s: %v", ErrAccess, g.Name, r)
		}
	}()
	v, err = g.read(owner)
	if err == nil && v == nil && !g.optional {
		return nil, fmt.Errorf("%w: group %s is unset", ErrAccess, g.Name)
	}
	return v, err
}

// Accessor returns the accessor of a field declared by the group's type.
func (g *Group) Accessor(name string) (Accessor, bool) {
	a, ok := g.accessors[name]
	return a, ok
}

// Entity is the registered metadata of one entity type.
type Entity struct {
	Name  string
	Table string
	Type  reflect.Type

	// Fields lists the persistent fields in registration order.
	Fields []Field

	// ID names the identifier field, empty when the entity has none.
	ID string

	accessors map[string]Accessor
	groups    map[reflect.Type]*Group
	setter    *Setter
}

// Accessor returns the accessor of a field declared directly on the entity.
func (e *Entity) Accessor(name string) (Accessor, bool) {
	a, ok := e.accessors[name]
	return a, ok
}

// Group returns the embedded group whose type is declaring.
func (e *Entity) Group(declaring reflect.Type) (*Group, bool) {
	g, ok := e.groups[declaring]
	return g, ok
}

// Identifier returns the identifier field and its accessor.
func (e *Entity) Identifier() (Field, Accessor, bool) {
	if e.ID == "" {
		return Field{}, Accessor{}, false
	}
	a, ok := e.accessors[e.ID]
	if !ok {
		return Field{}, Accessor{}, false
	}
	for _, f := range e.Fields {
		if f.Name == e.ID && f.Declaring == e.Type {
			return f, a, true
		}
	}
	return Field{}, Accessor{}, false
}

// IdentifierSetter returns the setter used to assign generated identifiers.
func (e *Entity) IdentifierSetter() (Setter, bool) {
	if e.setter == nil {
		return Setter{}, false
	}
	return *e.setter, true
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s(%s)", e.Name, e.Table)
}
