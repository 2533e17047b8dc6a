package builder

import (
	"log"
	"reflect"

	"persist/internal/coerce"
	"persist/internal/metadata"
	"persist/internal/record"
)

// Relationships yields the relationship descriptors of a child type.
type Relationships interface {
	RelationshipsForChild(child reflect.Type) []metadata.Relationship
}

// Identifiers resolves the identifier of an entity instance.
type Identifiers interface {
	IdentifierOf(entity any) (record.Value, error)
}

// Cache is the read side of a transaction entity cache: it yields the parent
// instance a child should reference.
type Cache interface {
	Parent(t reflect.Type) (any, bool)
}

// Builder turns entities into records. It holds no per-build state and can
// be shared by concurrent builds.
type Builder struct {
	rels  Relationships
	ids   Identifiers
	quiet bool
}

// Option configures a Builder.
type Option func(*Builder)

// Quiet stops the builder from logging skipped fields.
func Quiet() Option {
	return func(b *Builder) { b.quiet = true }
}

// New returns a Builder that resolves foreign keys through rels and ids.
func New(rels Relationships, ids Identifiers, opts ...Option) *Builder {
	b := &Builder{rels: rels, ids: ids}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build converts object into a record using entity's persistent fields and
// then injects the foreign keys of its relationships, resolving parents in
// cache. cache may be nil, in which case no foreign keys are written.
//
// A field described by metadata but readable neither on the object nor on
// the embedded group of its declaring type is skipped. Any other fault fails
// the whole build: no record is returned.
func (b *Builder) Build(object any, entity *metadata.Entity, cache Cache) (record.Record, error) {
	if entity == nil {
		return nil, &BuildError{Entity: "<nil>", Err: ErrEntityMismatch}
	}
	if object == nil || reflect.ValueOf(object).Kind() == reflect.Pointer && reflect.ValueOf(object).IsNil() {
		return nil, &BuildError{Entity: entity.Name, Err: ErrNilObject}
	}
	if t := metadata.TypeOf(object); t != entity.Type {
		return nil, &BuildError{Entity: entity.Name, Err: errorf(ErrEntityMismatch, "%s is not %s", t, entity.Type)}
	}

	rec := record.New(len(entity.Fields))
	for _, f := range entity.Fields {
		acc, owner, ok, err := resolve(object, entity, f)
		if err != nil {
			return nil, &BuildError{Entity: entity.Name, Column: f.Column, Err: err}
		}
		if !ok {
			if !b.quiet {
				log.Printf("[BUILDER] %s: no accessor for field %q of %s, column %q skipped",
					entity.Name, f.Name, f.Declaring, f.Column)
			}
			continue
		}

		var raw any
		if owner != nil {
			if raw, err = acc.Read(owner); err != nil {
				return nil, &BuildError{Entity: entity.Name, Column: f.Column, Err: err}
			}
		}
		v, err := coerce.Dispatch(acc.Type(), raw)
		if err != nil {
			return nil, &BuildError{Entity: entity.Name, Column: f.Column, Err: err}
		}
		rec.Put(f.Column, v)
	}

	if err := b.injectRelationships(rec, entity, cache); err != nil {
		return nil, err
	}
	return rec, nil
}

// resolve finds the accessor for f and the value it should read from. The
// field is looked up on the entity itself first, then on the embedded group
// whose type declares it. A nil owner with ok set means an optional group
// is unset and the field coerces as null.
func resolve(object any, entity *metadata.Entity, f metadata.Field) (acc metadata.Accessor, owner any, ok bool, err error) {
	if acc, ok := entity.Accessor(f.Name); ok {
		return acc, object, true, nil
	}

	g, ok := entity.Group(f.Declaring)
	if !ok {
		return metadata.Accessor{}, nil, false, nil
	}
	acc, ok = g.Accessor(f.Name)
	if !ok {
		return metadata.Accessor{}, nil, false, nil
	}
	sub, err := g.Read(object)
	if err != nil {
		return metadata.Accessor{}, nil, false, err
	}
	return acc, sub, true, nil
}
