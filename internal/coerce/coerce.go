package coerce

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"persist/internal/record"
)

var (
	// ErrUnsupportedType is returned for byte-sequence fields. Rows in this
	// layer hold no blob variant, so the value is refused instead of dropped.
	ErrUnsupportedType = errors.New("unsupported declared type")

	// ErrTypeMismatch means the runtime value cannot be read as its declared type.
	ErrTypeMismatch = errors.New("value does not match declared type")
)

// Dispatch converts raw into the storage primitive selected by declared.
// raw may be a value, a pointer to one, or a driver.Valuer such as
// sql.NullInt64; nil pointers and invalid Null wrappers are null.
func Dispatch(declared Type, raw any) (record.Value, error) {
	v, null, err := unwrap(raw)
	if err != nil {
		return record.Null(), err
	}

	switch declared {
	case Bool:
		if null {
			return record.Bool(false), nil
		}
		b, ok := v.(bool)
		if !ok {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Bool {
				return record.Null(), mismatch(declared, v)
			}
			b = rv.Bool()
		}
		return record.Bool(b), nil

	case Time:
		if null {
			return record.Null(), nil
		}
		t, ok := v.(time.Time)
		if !ok {
			return record.Null(), mismatch(declared, v)
		}
		return record.Int(t.UnixMilli()), nil

	case Bytes:
		return record.Null(), fmt.Errorf("%w: %s", ErrUnsupportedType, declared)

	case Float64:
		if null {
			return record.Null(), nil
		}
		f, ok := toFloat64(v)
		if !ok {
			return record.Null(), mismatch(declared, v)
		}
		return record.Float64(f), nil

	case Float32:
		if null {
			return record.Null(), nil
		}
		f, ok := v.(float32)
		if !ok {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Float32 {
				return record.Null(), mismatch(declared, v)
			}
			f = float32(rv.Float())
		}
		return record.Float32(f), nil

	case Int, Int64, Int16, Int8:
		if null {
			return record.Null(), nil
		}
		n, ok := toInt64(v)
		if !ok {
			return record.Null(), mismatch(declared, v)
		}
		return record.Int(n), nil

	default:
		if null {
			return record.Null(), nil
		}
		return record.String(toText(v)), nil
	}
}

// unwrap strips one level of pointer and resolves driver.Valuer wrappers.
func unwrap(raw any) (v any, null bool, err error) {
	if raw == nil {
		return nil, true, nil
	}
	if valuer, ok := raw.(driver.Valuer); ok {
		if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, true, nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return nil, false, fmt.Errorf("read value: %w", err)
		}
		return dv, dv == nil, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, true, nil
		}
		return unwrap(rv.Elem().Interface())
	}
	return raw, false, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func mismatch(declared Type, v any) error {
	return fmt.Errorf("%w: %T as %s", ErrTypeMismatch, v, declared)
}
