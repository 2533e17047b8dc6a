package coerce

import (
	"database/sql"
	"reflect"
	"time"
)

// Type is the declared type of a persistent field. It selects the coercion
// rule; the runtime value never does.
type Type uint8

const (
	Text Type = iota // default rule: textual form
	Bool
	Time
	Bytes
	Float64
	Float32
	Int
	Int64
	Int16
	Int8
)

var typeNames = [...]string{
	Text:    "text",
	Bool:    "bool",
	Time:    "time",
	Bytes:   "bytes",
	Float64: "float64",
	Float32: "float32",
	Int:     "int",
	Int64:   "int64",
	Int16:   "int16",
	Int8:    "int8",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

var (
	timeType = reflect.TypeFor[time.Time]()

	// database/sql nullable wrappers declare the type of their payload.
	nullTypes = map[reflect.Type]Type{
		reflect.TypeFor[sql.NullBool]():    Bool,
		reflect.TypeFor[sql.NullTime]():    Time,
		reflect.TypeFor[sql.NullFloat64](): Float64,
		reflect.TypeFor[sql.NullInt64]():   Int64,
		reflect.TypeFor[sql.NullInt32]():   Int,
		reflect.TypeFor[sql.NullInt16]():   Int16,
		reflect.TypeFor[sql.NullByte]():    Int8,
		reflect.TypeFor[sql.NullString]():  Text,
	}
)

// TypeOf returns the declared type for values of V. It is meant to run once,
// when an accessor is registered.
func TypeOf[V any]() Type {
	return TypeFor(reflect.TypeFor[V]())
}

// TypeFor maps a Go type to its declared type. A pointer declares the same
// type as its element; nil pointers coerce as null.
func TypeFor(rt reflect.Type) Type {
	if rt == nil {
		return Text
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if t, ok := nullTypes[rt]; ok {
		return t
	}
	if rt == timeType {
		return Time
	}

	switch rt.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return Bytes
		}
	case reflect.Float64:
		return Float64
	case reflect.Float32:
		return Float32
	case reflect.Int, reflect.Int32, reflect.Uint16, reflect.Uint32:
		return Int
	case reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Int64
	case reflect.Int16:
		return Int16
	case reflect.Int8, reflect.Uint8:
		return Int8
	}
	return Text
}
