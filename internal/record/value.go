package record

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the storage-side variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat64
	KindFloat32
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat64:
		return "float64"
	case KindFloat32:
		return "float32"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a storage primitive: one of null, 64-bit integer, float64,
// float32 or string. Booleans and timestamps are carried as integers.
// The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float64 returns a double precision Value.
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }

// Float32 returns a single precision Value. The float32 is stored widened,
// Float32Value narrows it back without loss.
func Float32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }

// String returns a text Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool encodes a boolean the way rows store it: 1 for true, 0 for false.
func Bool(v bool) Value {
	if v {
		return Int(1)
	}
	return Int(0)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IntValue returns the integer payload. ok is false for any other kind.
func (v Value) IntValue() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// Float64Value returns the float payload of a Float64 or Float32 value.
func (v Value) Float64Value() (float64, bool) {
	return v.f, v.kind == KindFloat64 || v.kind == KindFloat32
}

// Float32Value returns the float payload of a Float32 value.
func (v Value) Float32Value() (float32, bool) {
	return float32(v.f), v.kind == KindFloat32
}

func (v Value) StringValue() (string, bool) {
	return v.s, v.kind == KindString
}

// Any returns the value in the form database drivers accept as a query
// argument: nil, int64, float64, float32 or string.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat64:
		return v.f
	case KindFloat32:
		return float32(v.f)
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether both values have the same kind and payload.
// NaN payloads compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat64, KindFloat32:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindString:
		return v.s == o.s
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindFloat32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case KindString:
		return strconv.Quote(v.s)
	case KindNull:
		return "NULL"
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
