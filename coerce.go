package hydrate

import (
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////////
// Built-in coercers
///////////////////////////////////////////////////////////////////////////////

// ParseTime is a constructor-style coercer for FieldSpec.Instantiator.
// It accepts a string in any of the supported layouts, or a time.Time
// passed through unchanged.
func ParseTime(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		var lastErr error
		for _, layout := range timeLayouts {
			t, err := time.Parse(layout, v)
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("cannot parse %q as time: %w", v, lastErr)
	default:
		return nil, fmt.Errorf("cannot parse %T as time", raw)
	}
}

// ParseUUID is a constructor-style coercer for FieldSpec.Instantiator.
func ParseUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as UUID: %w", v, err)
		}
		return id, nil
	default:
		return nil, fmt.Errorf("cannot parse %T as UUID", raw)
	}
}

///////////////////////////////////////////////////////////////////////////////
// Field assignment
///////////////////////////////////////////////////////////////////////////////

// assignValue sets raw into field, converting where the conversion is
// unambiguous.
//
// Supported, in order:
//   - nil raw: zero the field
//   - direct assignability (including any-typed fields, which alias the
//     raw value verbatim)
//   - numeric convertibility with overflow checking
//   - string into time.Time or uuid.UUID
//   - encoding.TextUnmarshaler on the field's address
func assignValue(field reflect.Value, raw any) error {
	if raw == nil {
		field.SetZero()
		return nil
	}

	rv := reflect.ValueOf(raw)
	ft := field.Type()

	if rv.Type().AssignableTo(ft) {
		field.Set(rv)
		return nil
	}

	// Pointer fields take the value one level down.
	if ft.Kind() == reflect.Pointer && rv.Type().AssignableTo(ft.Elem()) {
		p := reflect.New(ft.Elem())
		p.Elem().Set(rv)
		field.Set(p)
		return nil
	}

	if isNumeric(rv.Type()) && isNumeric(ft) {
		return assignNumeric(field, rv)
	}

	if s, ok := raw.(string); ok {
		switch ft {
		case TimeType:
			t, err := ParseTime(s)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(t))
			return nil
		case UUIDType:
			id, err := ParseUUID(s)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(id))
			return nil
		}
		if field.CanAddr() {
			if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
				return u.UnmarshalText([]byte(s))
			}
		}
	}

	return fmt.Errorf("cannot assign %T to %s", raw, ft)
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// assignNumeric converts between numeric kinds, refusing conversions
// that would silently truncate a fractional part or overflow.
func assignNumeric(field reflect.Value, rv reflect.Value) error {
	ft := field.Type()
	switch ft.Kind() {
	case reflect.Float32, reflect.Float64:
		field.Set(rv.Convert(ft))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			i = int64(f)
			if float64(i) != f {
				return fmt.Errorf("value %v is not an integer", f)
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			i = int64(rv.Uint())
		default:
			i = rv.Int()
		}
		if field.OverflowInt(i) {
			return fmt.Errorf("value %d overflows %s", i, ft)
		}
		field.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f < 0 {
				return fmt.Errorf("negative value %v for %s", f, ft)
			}
			u = uint64(f)
			if float64(u) != f {
				return fmt.Errorf("value %v is not an integer", f)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i := rv.Int()
			if i < 0 {
				return fmt.Errorf("negative value %d for %s", i, ft)
			}
			u = uint64(i)
		default:
			u = rv.Uint()
		}
		if field.OverflowUint(u) {
			return fmt.Errorf("value %d overflows %s", u, ft)
		}
		field.SetUint(u)
		return nil
	}
	return fmt.Errorf("cannot convert %s to %s", rv.Type(), ft)
}

///////////////////////////////////////////////////////////////////////////////
// Deep clone
///////////////////////////////////////////////////////////////////////////////

// deepClone copies plain data recursively. Maps and slices are cloned at
// every depth; scalars are returned as-is. Used for expando contents,
// which must never alias the instance's own map.
func deepClone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = deepClone(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = deepClone(elem)
		}
		return out
	default:
		return v
	}
}
