package metadata

import (
	"errors"
	"fmt"
	"reflect"

	"persist/internal/coerce"
)

// ErrAccess is the cause of every failed attribute read or write.
var ErrAccess = errors.New("field access failed")

// Accessor reads one attribute from an owner of a fixed type. Accessors are
// built once from typed closures, so reading a field never inspects the
// owner's structure at runtime.
type Accessor struct {
	owner reflect.Type
	typ   coerce.Type
	read  func(owner any) (any, error)
}

// Get builds an Accessor from a getter on *T. The declared type of the
// attribute is taken from V.
func Get[T, V any](fn func(*T) V) Accessor {
	ownerType := reflect.TypeFor[*T]()
	return Accessor{
		owner: ownerType,
		typ:   coerce.TypeOf[V](),
		read: func(owner any) (any, error) {
			o, ok := owner.(*T)
			if !ok {
				return nil, fmt.Errorf("%w: owner is %T, want %s", ErrAccess, owner, ownerType)
			}
			if o == nil {
				return nil, fmt.Errorf("%w: nil %s", ErrAccess, ownerType)
			}
			return fn(o), nil
		},
	}
}

// Type is the declared type used to pick the coercion rule.
func (a Accessor) Type() coerce.Type { return a.typ }

func (a Accessor) valid() bool { return a.read != nil }

// Read returns the attribute value of owner. A panicking getter is reported
// as ErrAccess instead of unwinding the caller.
func (a Accessor) Read(owner any) (v any, err error) {
	if a.read == nil {
		return nil, fmt.Errorf("%w: empty accessor", ErrAccess)
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", ErrAccess, r)
		}
	}()
	return a.read(owner)
}

// Setter writes an identifier back onto an entity once it has been generated.
type Setter struct {
	owner reflect.Type
	typ   coerce.Type
	write func(owner, v any) error
}

// Set builds a Setter from a typed closure on *T.
func Set[T, V any](fn func(*T, V)) Setter {
	ownerType := reflect.TypeFor[*T]()
	valueType := reflect.TypeFor[V]()
	return Setter{
		owner: ownerType,
		typ:   coerce.TypeOf[V](),
		write: func(owner, v any) error {
			o, ok := owner.(*T)
			if !ok || o == nil {
				return fmt.Errorf("%w: cannot assign to %T", ErrAccess, owner)
			}
			val, ok := v.(V)
			if !ok {
				rv := reflect.ValueOf(v)
				if !rv.IsValid() || !rv.Type().ConvertibleTo(valueType) {
					return fmt.Errorf("%w: cannot assign %T to %s", ErrAccess, v, valueType)
				}
				val = rv.Convert(valueType).Interface().(V)
			}
			fn(o, val)
			return nil
		},
	}
}

// Type is the declared type of the assigned value.
func (s Setter) Type() coerce.Type { return s.typ }

// Write assigns v to owner, converting between compatible Go types.
func (s Setter) Write(owner, v any) error {
	if s.write == nil {
		return fmt.Errorf("%w: empty setter", ErrAccess)
	}
	return s.write(owner, v)
}
