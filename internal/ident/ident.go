package ident

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"persist/internal/coerce"
	"persist/internal/metadata"
	"persist/internal/record"
)

var (
	ErrUnknownEntity = errors.New("entity type not registered")
	ErrNoIdentifier  = errors.New("entity has no identifier")
)

// Entities looks up entity metadata by instance.
type Entities interface {
	EntityOf(obj any) (*metadata.Entity, bool)
}

// Generator produces new text identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random (version 4) UUID strings.
type UUID struct{}

func (UUID) NewID() string { return uuid.New().String() }

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) NewID() string { return f() }

// Resolver reads and assigns entity identifiers through catalog metadata.
type Resolver struct {
	entities Entities
	gen      Generator
}

// NewResolver returns a resolver that generates text identifiers with gen,
// or with UUID when gen is nil.
func NewResolver(entities Entities, gen Generator) *Resolver {
	if gen == nil {
		gen = UUID{}
	}
	return &Resolver{entities: entities, gen: gen}
}

// IdentifierOf returns the identifier of entity as a storage primitive.
func (r *Resolver) IdentifierOf(entity any) (record.Value, error) {
	ent, acc, err := r.identifier(entity)
	if err != nil {
		return record.Null(), err
	}
	raw, err := acc.Read(entity)
	if err != nil {
		return record.Null(), fmt.Errorf("identifier of %s: %w", ent.Name, err)
	}
	v, err := coerce.Dispatch(acc.Type(), raw)
	if err != nil {
		return record.Null(), fmt.Errorf("identifier of %s: %w", ent.Name, err)
	}
	return v, nil
}

// AssignText gives entity a generated identifier when its text identifier
// is blank and the entity declares a setter. It reports whether one was
// assigned.
func (r *Resolver) AssignText(entity any) (bool, error) {
	ent, acc, err := r.identifier(entity)
	if err != nil {
		return false, err
	}
	set, ok := ent.IdentifierSetter()
	if !ok || acc.Type() != coerce.Text || set.Type() != coerce.Text {
		return false, nil
	}
	current, err := r.IdentifierOf(entity)
	if err != nil {
		return false, err
	}
	if !IsUnset(current) {
		return false, nil
	}
	if err := set.Write(entity, r.gen.NewID()); err != nil {
		return false, fmt.Errorf("assign identifier of %s: %w", ent.Name, err)
	}
	return true, nil
}

// NeedsStoreKey reports whether entity has a blank integer identifier the
// store is expected to generate.
func (r *Resolver) NeedsStoreKey(entity any) (bool, error) {
	ent, acc, err := r.identifier(entity)
	if errors.Is(err, ErrNoIdentifier) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, ok := ent.IdentifierSetter(); !ok || !isInteger(acc.Type()) {
		return false, nil
	}
	current, err := r.IdentifierOf(entity)
	if err != nil {
		return false, err
	}
	return IsUnset(current), nil
}

// AssignKey writes a store generated integer key back onto entity.
func (r *Resolver) AssignKey(entity any, key int64) error {
	ent, _, err := r.identifier(entity)
	if err != nil {
		return err
	}
	set, ok := ent.IdentifierSetter()
	if !ok {
		return fmt.Errorf("%w: %s declares no identifier setter", ErrNoIdentifier, ent.Name)
	}
	if err := set.Write(entity, key); err != nil {
		return fmt.Errorf("assign key of %s: %w", ent.Name, err)
	}
	return nil
}

// ClearIdentifier resets entity's identifier to blank: "" for text and 0 for
// integer identifiers. It undoes AssignText and AssignKey.
func (r *Resolver) ClearIdentifier(entity any) error {
	ent, acc, err := r.identifier(entity)
	if err != nil {
		return err
	}
	set, ok := ent.IdentifierSetter()
	if !ok {
		return fmt.Errorf("%w: %s declares no identifier setter", ErrNoIdentifier, ent.Name)
	}
	var blank any = ""
	if isInteger(acc.Type()) {
		blank = int64(0)
	}
	if err := set.Write(entity, blank); err != nil {
		return fmt.Errorf("clear identifier of %s: %w", ent.Name, err)
	}
	return nil
}

func (r *Resolver) identifier(entity any) (*metadata.Entity, metadata.Accessor, error) {
	ent, ok := r.entities.EntityOf(entity)
	if !ok {
		return nil, metadata.Accessor{}, fmt.Errorf("%w: %T", ErrUnknownEntity, entity)
	}
	_, acc, ok := ent.Identifier()
	if !ok {
		return ent, metadata.Accessor{}, fmt.Errorf("%w: %s", ErrNoIdentifier, ent.Name)
	}
	return ent, acc, nil
}

// IsUnset reports whether v is a blank identifier: null, zero or empty text.
func IsUnset(v record.Value) bool {
	switch v.Kind() {
	case record.KindNull:
		return true
	case record.KindInteger:
		n, _ := v.IntValue()
		return n == 0
	case record.KindString:
		s, _ := v.StringValue()
		return s == ""
	}
	return false
}

func isInteger(t coerce.Type) bool {
	switch t {
	case coerce.Int, coerce.Int64, coerce.Int16, coerce.Int8:
		return true
	}
	return false
}
