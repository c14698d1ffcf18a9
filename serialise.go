package hydrate

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////////
// Options
///////////////////////////////////////////////////////////////////////////////

// SerialiseOpts controls a serialisation walk.
type SerialiseOpts struct {
	// ErrorForExtraProps makes any exported struct field not accounted
	// for by a declared field or the expando field a fatal error.
	ErrorForExtraProps bool

	// NestExpando emits the expando contents as one map under the
	// expando key instead of flattening them to top-level keys. Both
	// shapes are losslessly inverted by the hydrator; flattening is the
	// default because it reproduces the input shape byte for byte.
	NestExpando bool
}

///////////////////////////////////////////////////////////////////////////////
// Entry points
///////////////////////////////////////////////////////////////////////////////

// SerialiseInstance turns an instance back into plain data: maps,
// slices, scalars, RFC 3339 date strings. The result never aliases the
// instance's expando map or any container nested in it.
//
// An instance implementing CustomSerialiser owns its full wire contract;
// the schema walk is skipped. Otherwise every declared field is emitted
// (a required field that is null at this point is a fatal
// SerialisationError, never silently skipped), every computed key is
// evaluated, and the expando contents are deep-cloned into place.
func (r *SchemaRegistry) SerialiseInstance(instance any, opts SerialiseOpts) (map[string]any, error) {
	if instance == nil {
		return nil, nil
	}
	s := &serialiser{reg: r, opts: opts}
	return s.serialise(instance, RootPath)
}

// SerialiseInstance serialises using the global registry.
func SerialiseInstance(instance any, opts SerialiseOpts) (map[string]any, error) {
	return _globalRegistry.SerialiseInstance(instance, opts)
}

///////////////////////////////////////////////////////////////////////////////
// Serialiser
///////////////////////////////////////////////////////////////////////////////

type serialiser struct {
	reg  *SchemaRegistry
	opts SerialiseOpts
}

func (s *serialiser) serialise(instance any, path string) (map[string]any, error) {
	if hook, ok := instance.(CustomSerialiser); ok {
		out, err := hook.SerialiseCustom()
		if err != nil {
			return nil, newError(ErrSerialisation, path,
				"custom serialisation hook failed: %v", err)
		}
		return out, nil
	}

	ptr, err := instancePointer(instance, path)
	if err != nil {
		return nil, err
	}
	elem := ptr.Elem()

	schema, rerr := s.reg.resolveType(elem.Type())
	if rerr != nil {
		return nil, rerr
	}

	out := make(map[string]any, len(schema.Order)+len(schema.ComputedOrder))

	for _, key := range schema.Order {
		f := schema.Fields[key]
		fv := elem.FieldByName(f.Name)

		if isNilValue(fv) {
			if f.Required {
				return nil, newError(ErrSerialisation, childPath(path, key),
					"required field %q was null during serialisation", key)
			}
			// Optional nulls are omitted; hydration treats a missing
			// key and an explicit null identically.
			continue
		}

		val, err := s.serialiseField(fv, f, childPath(path, key))
		if err != nil {
			return nil, err
		}
		out[key] = val
	}

	for _, key := range schema.ComputedOrder {
		c := schema.Computed[key]
		val, err := s.evaluateComputed(ptr, c, path)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}

	if schema.ExpandoField != "" {
		if m, ok := elem.FieldByName(schema.ExpandoField).Interface().(map[string]any); ok && m != nil {
			clone := deepClone(m).(map[string]any)
			if s.opts.NestExpando {
				out[schema.ExpandoKey] = clone
			} else {
				for k, v := range clone {
					out[k] = v
				}
			}
		}
	}

	if s.opts.ErrorForExtraProps {
		if err := s.checkUnaccountedFields(elem, schema, path); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *serialiser) serialiseField(fv reflect.Value, f *FieldSpec, path string) (any, error) {
	switch f.Kind {
	case ObjectKind:
		return s.serialiseNested(fv, path)
	case ArrayKind:
		if fv.Kind() != reflect.Slice {
			return nil, newError(ErrSerialisation, path,
				"array field is %s, not a slice", fv.Type())
		}
		out := make([]any, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			ev := fv.Index(i)
			if isNilValue(ev) {
				continue // hole stays a hole
			}
			val, err := s.serialiseElement(ev, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		return s.serialiseScalar(fv.Interface()), nil
	}
}

// serialiseNested emits a single nested schema-driven value.
func (s *serialiser) serialiseNested(fv reflect.Value, path string) (any, error) {
	v := fv
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Pointer {
		if !v.CanAddr() {
			p := reflect.New(v.Type())
			p.Elem().Set(v)
			v = p
		} else {
			v = v.Addr()
		}
	}
	return s.serialise(v.Interface(), path)
}

// serialiseElement emits one array element: schema-driven when the
// element is a struct the registry knows (or carries its own hook),
// plain otherwise.
func (s *serialiser) serialiseElement(ev reflect.Value, path string) (any, error) {
	v := ev
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	t := v.Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && t != TimeType && t != UUIDType {
		if _, registered := s.reg.spec(t); registered || implementsCustomSerialiser(v) {
			return s.serialiseNested(ev, path)
		}
	}
	return s.serialiseScalar(ev.Interface()), nil
}

// serialiseScalar canonicalises a leaf: dates become RFC 3339 strings,
// UUIDs their string form, plain containers are deep-cloned so the
// output never aliases the instance. Everything else passes through.
func (s *serialiser) serialiseScalar(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case uuid.UUID:
		return val.String()
	case map[string]any:
		return deepClone(val)
	case []any:
		return deepClone(val)
	default:
		return v
	}
}

// evaluateComputed invokes a computed key's getter and serialises its
// result. A failing getter is fatal, wrapped with the key name.
func (s *serialiser) evaluateComputed(ptr reflect.Value, c *ComputedSpec, path string) (any, error) {
	method := ptr.MethodByName(c.Method)
	if !method.IsValid() {
		return nil, newError(ErrSerialisation, childPath(path, c.Key),
			"computed key %q: no method %s", c.Key, c.Method)
	}
	results := method.Call(nil)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, newError(ErrSerialisation, childPath(path, c.Key),
			"computed key %q failed: %v", c.Key, results[1].Interface())
	}
	rv := results[0]
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if rv.IsValid() && rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().Kind() == reflect.Struct {
		if _, registered := s.reg.spec(rv.Type().Elem()); registered {
			return s.serialise(rv.Interface(), childPath(path, c.Key))
		}
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return s.serialiseScalar(rv.Interface()), nil
}

// checkUnaccountedFields enforces the strict-serialisation policy: every
// exported struct field must be a declared field or the expando field.
func (s *serialiser) checkUnaccountedFields(elem reflect.Value, schema *ResolvedSchema, path string) error {
	declared := make(map[string]bool, len(schema.Fields)+1)
	for _, f := range schema.Fields {
		declared[f.Name] = true
	}
	if schema.ExpandoField != "" {
		declared[schema.ExpandoField] = true
	}
	for _, sf := range reflect.VisibleFields(elem.Type()) {
		if sf.Anonymous || sf.PkgPath != "" {
			continue
		}
		if !declared[sf.Name] {
			return newError(ErrUnexpectedProperties, path,
				"struct field %s is not accounted for by the schema", sf.Name)
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Helpers
///////////////////////////////////////////////////////////////////////////////

// instancePointer normalizes an instance to an addressable pointer so
// pointer-receiver getters stay callable.
func instancePointer(instance any, path string) (reflect.Value, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, newError(ErrSerialisation, path, "nil instance")
		}
		if v.Elem().Kind() != reflect.Struct {
			return reflect.Value{}, newError(ErrSerialisation, path,
				"expected a struct instance, got %T", instance)
		}
		return v, nil
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, newError(ErrSerialisation, path,
			"expected a struct instance, got %T", instance)
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p, nil
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return v.IsNil()
	}
	return false
}

func implementsCustomSerialiser(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	t := v.Type()
	hook := reflect.TypeOf((*CustomSerialiser)(nil)).Elem()
	if t.Implements(hook) {
		return true
	}
	return t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(hook)
}
