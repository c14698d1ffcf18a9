package hydrate

import (
	"errors"
	"reflect"
	"sort"
	"strconv"
)

///////////////////////////////////////////////////////////////////////////////
// Options and results
///////////////////////////////////////////////////////////////////////////////

// CreateOpts controls a single hydration walk. Every recursive call
// receives the same options.
type CreateOpts struct {
	// CollectErrors switches from fail-fast to collecting mode: every
	// error at every level is accumulated into one ErrorList and a
	// best-effort instance is still returned. Success is exclusively an
	// empty list, i.e. a nil error.
	CollectErrors bool

	// BypassConstructor forces allocation without running any
	// registered constructor, for every type in the walk.
	BypassConstructor bool

	// ErrorForExtraProps makes input keys not consumed by a declared
	// field an UnexpectedProperties error when the type declares no
	// expando field. Off, such keys are dropped silently.
	ErrorForExtraProps bool

	// ErrorForNullRequired escalates an explicit null under a required
	// field (with no IfEmpty fallback) into a NullRequiredProperty
	// error at the field's own path. Off, the null passes through.
	ErrorForNullRequired bool

	// DontReplaceNullWithIfEmpty preserves explicit nulls instead of
	// treating them as empty and applying the IfEmpty fallback.
	DontReplaceNullWithIfEmpty bool

	// Path overrides the root context path used in error values.
	Path string
}

// ValidationResult is the outcome of ValidateInstance.
type ValidationResult struct {
	Valid    bool
	Instance any
	Errors   ErrorList
}

///////////////////////////////////////////////////////////////////////////////
// Entry points
///////////////////////////////////////////////////////////////////////////////

// CreateInstance hydrates raw data into an instance of the target type.
//
// target may be a pointer sample (&User{}), a reflect.Type, or an
// explicit factory func() any whose result becomes the instance.
//
// In fail-fast mode (the default) the first error anywhere in the walk
// aborts and is returned; the partial instance is discarded by callers.
// With CollectErrors set, the returned error is an ErrorList (nil when
// hydration succeeded) and the instance is always best-effort populated,
// with zero values standing in for failed fields.
//
// Configuration-class failures (unregistered types, missing
// instantiators, constructors that cannot run) abort in either mode:
// they are programming errors, not data errors.
func (r *SchemaRegistry) CreateInstance(data any, target any, opts CreateOpts) (any, error) {
	h := &hydrator{reg: r, opts: opts}
	path := opts.Path
	if path == "" {
		path = RootPath
	}

	inst, err := h.hydrate(data, target, path)
	if err != nil {
		return inst, err
	}
	if opts.CollectErrors {
		return inst, h.errs.AsError()
	}
	return inst, nil
}

// ValidateInstance hydrates in collecting mode and reports the outcome
// as a single value. Valid is true iff no error was recorded.
func (r *SchemaRegistry) ValidateInstance(data any, target any) ValidationResult {
	inst, err := r.CreateInstance(data, target, CreateOpts{CollectErrors: true})
	res := ValidationResult{Instance: inst, Errors: asErrorList(err)}
	res.Valid = len(res.Errors) == 0
	return res
}

// CreateInstance hydrates using the global registry.
func CreateInstance(data any, target any, opts CreateOpts) (any, error) {
	return _globalRegistry.CreateInstance(data, target, opts)
}

// ValidateInstance validates using the global registry.
func ValidateInstance(data any, target any) ValidationResult {
	return _globalRegistry.ValidateInstance(data, target)
}

///////////////////////////////////////////////////////////////////////////////
// Hydrator
///////////////////////////////////////////////////////////////////////////////

type hydrator struct {
	reg  *SchemaRegistry
	opts CreateOpts
	errs ErrorList
}

// report records e in collecting mode and returns nil so the walk can
// continue; in fail-fast mode it returns e to abort immediately.
func (h *hydrator) report(e *Error) error {
	if h.opts.CollectErrors {
		h.errs = append(h.errs, e)
		return nil
	}
	return e
}

// hydrate produces one instance of the target type from data. This is
// the recursive core: object fields and array elements re-enter here
// with a narrowed path.
func (h *hydrator) hydrate(data any, target any, path string) (any, error) {
	if data == nil {
		return nil, nil
	}

	typ, factory, err := resolveTarget(target, path)
	if err != nil {
		return nil, err
	}

	// A custom hook owns the full contract for this subtree.
	if reflect.PointerTo(typ).Implements(reflect.TypeOf((*CustomHydrator)(nil)).Elem()) {
		inst, err := h.allocate(typ, factory, nil, path)
		if err != nil {
			return nil, err
		}
		if hookErr := inst.Interface().(CustomHydrator).HydrateCustom(data); hookErr != nil {
			return nil, h.report(newError(ErrConstruction, path,
				"custom hydration hook for %s failed: %v", typ.Name(), hookErr))
		}
		return inst.Interface(), nil
	}

	schema, err := h.reg.resolveType(typ)
	if err != nil {
		return nil, err
	}

	dataMap, ok := data.(map[string]any)
	if !ok {
		return nil, h.report(newError(ErrTypeMismatch, path,
			"expected an object for %s, got %T", typ.Name(), data))
	}

	inst, err := h.allocate(typ, factory, schema, path)
	if err != nil {
		return nil, err
	}
	elem := inst.Elem()

	for _, key := range schema.Order {
		f := schema.Fields[key]
		fv := elem.FieldByName(f.Name)
		if err := h.hydrateField(fv, f, dataMap, path, key); err != nil {
			return inst.Interface(), err
		}
	}

	if err := h.absorbExtras(elem, schema, dataMap, path); err != nil {
		return inst.Interface(), err
	}

	return inst.Interface(), nil
}

// hydrateField runs the per-field state machine: resolve the raw value,
// apply emptiness and explicit-null policy, then dispatch on kind.
func (h *hydrator) hydrateField(fv reflect.Value, f *FieldSpec, data map[string]any, path, key string) error {
	raw, present := data[key]
	isNull := present && raw == nil

	// Emptiness: missing, or null unless nulls are preserved.
	if !present || (isNull && !h.opts.DontReplaceNullWithIfEmpty) {
		if f.IfEmpty != nil {
			return h.setField(fv, f, f.IfEmpty(), path, key)
		}
		if !present {
			// The omission is reported at the containing level, where
			// the caller left the key out.
			if f.Required {
				if err := h.report(newError(ErrMissingRequiredProperty, path,
					"missing required property %q", key)); err != nil {
					return err
				}
			}
			fv.SetZero()
			return nil
		}
		// Explicit null falls through.
	}

	if isNull {
		if f.Required && f.IfEmpty == nil && h.opts.ErrorForNullRequired {
			if err := h.report(newError(ErrNullRequiredProperty, childPath(path, key),
				"required property %q is null", key)); err != nil {
				return err
			}
		}
		fv.SetZero()
		return nil
	}

	return h.setField(fv, f, raw, path, key)
}

// setField performs the kind-specific instantiation of one field.
func (h *hydrator) setField(fv reflect.Value, f *FieldSpec, raw any, path, key string) error {
	switch f.Kind {
	case ValueKind:
		return h.setValueField(fv, f, raw, path, key)
	case ObjectKind:
		return h.setObjectField(fv, f, raw, path, key)
	case ArrayKind:
		return h.setArrayField(fv, f, raw, path, key)
	default:
		return h.report(newError(ErrConfiguration, childPath(path, key),
			"field %q has unsupported kind %s", key, f.Kind))
	}
}

// setValueField assigns a leaf. With a coercer the raw value goes
// through it (failures are CoercionErrors); without one the raw value is
// assigned verbatim, deliberately aliasing container values.
func (h *hydrator) setValueField(fv reflect.Value, f *FieldSpec, raw any, path, key string) error {
	switch fn := f.Instantiator.(type) {
	case func(any) (any, error):
		if f.AlwaysInstantiate || raw == nil || reflect.TypeOf(raw) != fv.Type() {
			coerced, err := fn(raw)
			if err != nil {
				if rerr := h.report(newError(ErrCoercion, childPath(path, key),
					"coercion of %q failed: %v", key, err)); rerr != nil {
					return rerr
				}
				fv.SetZero()
				return nil
			}
			raw = coerced
		}
	case func(any) any:
		raw = fn(raw)
	}

	if err := assignValue(fv, raw); err != nil {
		if rerr := h.report(newError(ErrTypeMismatch, childPath(path, key),
			"cannot assign %q: %v", key, err)); rerr != nil {
			return rerr
		}
		fv.SetZero()
	}
	return nil
}

// setObjectField recursively hydrates a single nested value.
func (h *hydrator) setObjectField(fv reflect.Value, f *FieldSpec, raw any, path, key string) error {
	if raw == nil {
		fv.SetZero()
		return nil
	}
	if _, ok := raw.(map[string]any); !ok {
		if err := h.report(newError(ErrTypeMismatch, childPath(path, key),
			"expected an object for %q, got %T", key, raw)); err != nil {
			return err
		}
		fv.SetZero()
		return nil
	}

	child, err := h.hydrate(raw, nestedTarget(f, fv.Type()), childPath(path, key))
	if err != nil {
		return err
	}
	return h.storeInstance(fv, child, path, key)
}

// setArrayField hydrates an ordered sequence, preserving index
// alignment. A null element stays null; it is not a missing-field error.
func (h *hydrator) setArrayField(fv reflect.Value, f *FieldSpec, raw any, path, key string) error {
	arr, ok := raw.([]any)
	if !ok {
		if err := h.report(newError(ErrTypeMismatch, childPath(path, key),
			"expected an array for %q, got %T", key, raw)); err != nil {
			return err
		}
		fv.SetZero()
		return nil
	}
	if fv.Kind() != reflect.Slice {
		return h.report(newError(ErrConfiguration, childPath(path, key),
			"array field %q must be a Go slice, is %s", key, fv.Type()))
	}

	out := reflect.MakeSlice(fv.Type(), len(arr), len(arr))
	elemType := fv.Type().Elem()

	// Per-element coercer, e.g. an array of date strings.
	coercer, hasCoercer := f.Instantiator.(func(any) (any, error))
	target := nestedTarget(f, elemType)

	for i, elemRaw := range arr {
		ev := out.Index(i)
		ipath := indexPath(childPath(path, key), i)

		if elemRaw == nil {
			continue // hole stays a hole
		}

		switch {
		case hasCoercer:
			coerced, err := coercer(elemRaw)
			if err != nil {
				if rerr := h.report(newError(ErrCoercion, ipath,
					"coercion failed: %v", err)); rerr != nil {
					return rerr
				}
				continue
			}
			if err := assignValue(ev, coerced); err != nil {
				if rerr := h.report(newError(ErrTypeMismatch, ipath,
					"cannot assign element: %v", err)); rerr != nil {
					return rerr
				}
			}
		case target != nil:
			if _, ok := elemRaw.(map[string]any); !ok {
				if err := h.report(newError(ErrTypeMismatch, ipath,
					"expected an object, got %T", elemRaw)); err != nil {
					return err
				}
				continue
			}
			child, err := h.hydrate(elemRaw, target, ipath)
			if err != nil {
				return err
			}
			if err := h.storeElement(ev, child, ipath); err != nil {
				return err
			}
		default:
			if err := assignValue(ev, elemRaw); err != nil {
				if rerr := h.report(newError(ErrTypeMismatch, ipath,
					"cannot assign element: %v", err)); rerr != nil {
					return rerr
				}
			}
		}
	}

	fv.Set(out)
	return nil
}

// absorbExtras materializes undeclared input keys into the expando
// field, or raises on them when the policy asks for strictness. Input
// under computed keys is always dropped intentionally. A serialised
// nested expando (the expando key itself holding a map) is unpacked
// back into contents, keeping both serialisation shapes invertible.
func (h *hydrator) absorbExtras(elem reflect.Value, schema *ResolvedSchema, data map[string]any, path string) error {
	var extras map[string]any
	var unexpected []string

	for k, v := range data {
		if _, declared := schema.Fields[k]; declared {
			continue
		}
		if _, computed := schema.Computed[k]; computed {
			continue
		}
		if schema.ExpandoField == "" {
			unexpected = append(unexpected, k)
			continue
		}
		if extras == nil {
			extras = make(map[string]any)
		}
		if k == schema.ExpandoKey {
			if nested, ok := v.(map[string]any); ok {
				for nk, nv := range nested {
					extras[nk] = nv
				}
				continue
			}
		}
		extras[k] = v
	}

	if len(unexpected) > 0 && h.opts.ErrorForExtraProps {
		sort.Strings(unexpected)
		return h.report(newError(ErrUnexpectedProperties, path,
			"unexpected properties %v", unexpected))
	}

	// A declared-but-unused expando stays unmaterialized: nil, not an
	// empty map.
	if schema.ExpandoField != "" && len(extras) > 0 {
		elem.FieldByName(schema.ExpandoField).Set(reflect.ValueOf(extras))
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Allocation
///////////////////////////////////////////////////////////////////////////////

// allocate produces the pointer instance that field population writes
// into. An explicit factory wins; otherwise a registered constructor
// runs when it safely can, and reflect.New allocates the zero value when
// there is no constructor or bypass is in effect.
func (h *hydrator) allocate(typ reflect.Type, factory func() any, schema *ResolvedSchema, path string) (reflect.Value, error) {
	if factory != nil {
		return boxInstance(typ, factory(), path)
	}

	if schema != nil && schema.Constructor != nil {
		bypass := h.opts.BypassConstructor || schema.BypassConstructor
		ctor := reflect.ValueOf(schema.Constructor)
		if ctor.Type().NumIn() > 0 {
			if !bypass {
				return reflect.Value{}, newError(ErrConstruction, path,
					"constructor for %s requires arguments and cannot run during hydration; set BypassConstructor to allocate without it", typ.Name())
			}
			return reflect.New(typ), nil
		}
		if bypass {
			return reflect.New(typ), nil
		}
		results := ctor.Call(nil)
		return boxInstance(typ, results[0].Interface(), path)
	}

	return reflect.New(typ), nil
}

// boxInstance normalizes a constructed value to a pointer of typ.
func boxInstance(typ reflect.Type, built any, path string) (reflect.Value, error) {
	if built == nil {
		return reflect.Value{}, newError(ErrConstruction, path,
			"constructor for %s returned nil", typ.Name())
	}
	v := reflect.ValueOf(built)
	if v.Kind() == reflect.Pointer {
		if v.Type().Elem() != typ {
			return reflect.Value{}, newError(ErrConstruction, path,
				"constructor returned %T, expected *%s", built, typ.Name())
		}
		return v, nil
	}
	if v.Type() != typ {
		return reflect.Value{}, newError(ErrConstruction, path,
			"constructor returned %T, expected %s", built, typ.Name())
	}
	p := reflect.New(typ)
	p.Elem().Set(v)
	return p, nil
}

// storeInstance writes a hydrated child (always a pointer or nil) into
// an object field, dereferencing when the field holds the struct value.
func (h *hydrator) storeInstance(fv reflect.Value, child any, path, key string) error {
	if child == nil {
		fv.SetZero()
		return nil
	}
	cv := reflect.ValueOf(child)
	switch {
	case cv.Type().AssignableTo(fv.Type()):
		fv.Set(cv)
	case cv.Kind() == reflect.Pointer && cv.Type().Elem().AssignableTo(fv.Type()):
		fv.Set(cv.Elem())
	default:
		return h.report(newError(ErrTypeMismatch, childPath(path, key),
			"hydrated %T does not fit field type %s", child, fv.Type()))
	}
	return nil
}

func (h *hydrator) storeElement(ev reflect.Value, child any, ipath string) error {
	if child == nil {
		return nil
	}
	cv := reflect.ValueOf(child)
	switch {
	case cv.Type().AssignableTo(ev.Type()):
		ev.Set(cv)
	case cv.Kind() == reflect.Pointer && cv.Type().Elem().AssignableTo(ev.Type()):
		ev.Set(cv.Elem())
	default:
		return h.report(newError(ErrTypeMismatch, ipath,
			"hydrated %T does not fit element type %s", child, ev.Type()))
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Target resolution
///////////////////////////////////////////////////////////////////////////////

// resolveTarget normalizes the instantiator: a pointer sample, a
// reflect.Type, or an explicit factory. Absence of any usable target is
// a fatal MissingInstantiator; no schema walk is attempted.
func resolveTarget(target any, path string) (reflect.Type, func() any, error) {
	switch tg := target.(type) {
	case nil:
		return nil, nil, newError(ErrMissingInstantiator, path,
			"no instantiator available")
	case reflect.Type:
		t := tg
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, nil, newError(ErrMissingInstantiator, path,
				"instantiator type %s is not a struct", tg)
		}
		return t, nil, nil
	case func() any:
		probe := tg()
		if probe == nil {
			return nil, nil, newError(ErrConstruction, path,
				"factory instantiator returned nil")
		}
		t := reflect.TypeOf(probe)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, nil, newError(ErrMissingInstantiator, path,
				"factory instantiator produced %T, expected a struct", probe)
		}
		first := probe
		used := false
		factory := func() any {
			// The probe call already built one instance; hand it out
			// once before calling again.
			if !used {
				used = true
				return first
			}
			return tg()
		}
		return t, factory, nil
	default:
		t := reflect.TypeOf(target)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, nil, newError(ErrMissingInstantiator, path,
				"instantiator %T is neither a struct sample, a reflect.Type nor a factory", target)
		}
		return t, nil, nil
	}
}

// nestedTarget picks the instantiator for a nested object or array
// element: the field's explicit instantiator wins, then the Go type
// itself when it identifies a struct.
func nestedTarget(f *FieldSpec, goType reflect.Type) any {
	if f.Instantiator != nil {
		if _, isCoercer := f.Instantiator.(func(any) (any, error)); !isCoercer {
			if _, isTransform := f.Instantiator.(func(any) any); !isTransform {
				return f.Instantiator
			}
		}
	}
	t := goType
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && t != TimeType && t != UUIDType {
		return t
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Helpers
///////////////////////////////////////////////////////////////////////////////

func childPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// asErrorList normalizes any error returned by a collecting walk into a
// flat list.
func asErrorList(err error) ErrorList {
	if err == nil {
		return nil
	}
	var el ErrorList
	if errors.As(err, &el) {
		return el
	}
	var e *Error
	if errors.As(err, &e) {
		return ErrorList{e}
	}
	return ErrorList{&Error{Err: err, Message: err.Error(), Context: RootPath}}
}
