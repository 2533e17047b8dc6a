package metadata

import (
	"errors"
	"fmt"
	"reflect"

	"persist/internal/coerce"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrDuplicateField  = errors.New("duplicate field")
	ErrOwnerMismatch   = errors.New("accessor owner mismatch")
)

// Column pairs a field name and its column with the accessor that reads it.
type Column struct {
	Name   string
	Column string
	Get    Accessor
}

// Col is shorthand for building a Column.
func Col(name, column string, get Accessor) Column {
	return Column{Name: name, Column: column, Get: get}
}

// Definition collects the registration table of one entity type:
// {column, accessor closure, coercion tag} per persistent field.
//
//	orders, err := metadata.Define[Order]("Order", "orders").
//		ID("id", "id", metadata.Get(func(o *Order) int64 { return o.ID })).
//		Field("paid", "paid", metadata.Get(func(o *Order) *bool { return o.Paid })).
//		Build()
type Definition[T any] struct {
	e       *Entity
	columns map[string]string
	errs    []error
}

// Define starts the definition of entity T stored in table.
func Define[T any](name, table string) *Definition[T] {
	return &Definition[T]{
		e: &Entity{
			Name:      name,
			Table:     table,
			Type:      reflect.TypeFor[T](),
			accessors: map[string]Accessor{},
			groups:    map[reflect.Type]*Group{},
		},
		columns: map[string]string{},
	}
}

// ID declares the identifier field. The optional setter lets a session write
// generated identifiers back onto new entities.
func (d *Definition[T]) ID(name, column string, get Accessor, set ...Setter) *Definition[T] {
	if d.e.ID != "" {
		d.errs = append(d.errs, fmt.Errorf("%s: identifier already declared as %q", d.e.Name, d.e.ID))
		return d
	}
	d.e.ID = name
	d.Field(name, column, get)
	if len(set) > 0 {
		s := set[0]
		if s.owner != reflect.PointerTo(d.e.Type) {
			d.errs = append(d.errs, fmt.Errorf("%w: %s setter on %s", ErrOwnerMismatch, d.e.Name, s.owner))
		} else {
			d.e.setter = &s
		}
	}
	return d
}

// Field declares a persistent field held directly by T.
func (d *Definition[T]) Field(name, column string, get Accessor) *Definition[T] {
	if err := d.check(name, column, get, reflect.PointerTo(d.e.Type)); err != nil {
		d.errs = append(d.errs, err)
		return d
	}
	if _, ok := d.e.accessors[name]; ok {
		d.errs = append(d.errs, fmt.Errorf("%w: %s.%s", ErrDuplicateField, d.e.Name, name))
		return d
	}
	for _, g := range d.e.groups {
		if _, ok := g.accessors[name]; ok {
			d.errs = append(d.errs, fmt.Errorf("%w: %s.%s already declared by group %s", ErrDuplicateField, d.e.Name, name, g.Name))
			return d
		}
	}
	d.e.accessors[name] = get
	d.add(Field{Name: name, Declaring: d.e.Type, Column: column})
	return d
}

// Embed declares a substructure of T and the persistent fields its type
// contributes to T's row.
func (d *Definition[T]) Embed(g Group, cols ...Column) *Definition[T] {
	if g.owner != reflect.PointerTo(d.e.Type) {
		d.errs = append(d.errs, fmt.Errorf("%w: group %s belongs to %s", ErrOwnerMismatch, g.Name, g.owner))
		return d
	}
	if _, ok := d.e.groups[g.Type]; ok {
		d.errs = append(d.errs, fmt.Errorf("%s: group of type %s declared twice", d.e.Name, g.Type))
		return d
	}

	grp := g
	grp.accessors = make(map[string]Accessor, len(cols))
	for _, c := range cols {
		if err := d.check(c.Name, c.Column, c.Get, reflect.PointerTo(g.Type)); err != nil {
			d.errs = append(d.errs, err)
			continue
		}
		if _, ok := grp.accessors[c.Name]; ok {
			d.errs = append(d.errs, fmt.Errorf("%w: %s.%s", ErrDuplicateField, g.Name, c.Name))
			continue
		}
		// direct fields resolve first, so a shared name would read the owner
		if _, ok := d.e.accessors[c.Name]; ok {
			d.errs = append(d.errs, fmt.Errorf("%w: %s.%s shadows field of %s", ErrDuplicateField, g.Name, c.Name, d.e.Name))
			continue
		}
		grp.accessors[c.Name] = c.Get
		d.add(Field{Name: c.Name, Declaring: g.Type, Column: c.Column})
	}
	d.e.groups[g.Type] = &grp
	return d
}

// Build validates the definition and returns the entity metadata.
func (d *Definition[T]) Build() (*Entity, error) {
	if d.e.Table == "" {
		d.errs = append(d.errs, fmt.Errorf("%s: empty table name", d.e.Name))
	}
	if len(d.errs) > 0 {
		return nil, fmt.Errorf("define %s: %w", d.e.Name, errors.Join(d.errs...))
	}
	return d.e, nil
}

// MustBuild is Build for package-level registration tables.
func (d *Definition[T]) MustBuild() *Entity {
	e, err := d.Build()
	if err != nil {
		panic(err)
	}
	return e
}

func (d *Definition[T]) check(name, column string, get Accessor, owner reflect.Type) error {
	switch {
	case name == "" || column == "":
		return fmt.Errorf("%s: field and column names are required", d.e.Name)
	case !get.valid():
		return fmt.Errorf("%s.%s: missing accessor", d.e.Name, name)
	case get.owner != owner:
		return fmt.Errorf("%w: %s.%s reads %s, want %s", ErrOwnerMismatch, d.e.Name, name, get.owner, owner)
	case get.typ == coerce.Bytes:
		return fmt.Errorf("%s.%s: %w: byte sequences have no column representation", d.e.Name, name, coerce.ErrUnsupportedType)
	}
	if prev, ok := d.columns[column]; ok {
		return fmt.Errorf("%w: %s.%s and %s both map to %q", ErrDuplicateColumn, d.e.Name, name, prev, column)
	}
	return nil
}

func (d *Definition[T]) add(f Field) {
	d.columns[f.Column] = f.Name
	d.e.Fields = append(d.e.Fields, f)
}
