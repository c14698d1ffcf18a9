package hydrate

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hengadev/errsx"
)

///////////////////////////////////////////////////////////////////////////////
// TypeSpec
///////////////////////////////////////////////////////////////////////////////

// TypeSpec is the declared metadata of one hydratable struct type. It is
// registered once, validated eagerly, and later flattened together with
// the specs of the types it extends into a ResolvedSchema.
type TypeSpec struct {
	// Extends names a registered supertype whose fields and computed
	// keys are merged in, with this type's own declarations shadowing
	// same-key fields. A pointer sample or reflect.Type; nil for roots.
	// The Go struct is expected to embed the supertype struct so that
	// inherited field names resolve through promotion.
	Extends any

	// Fields are the declared fields, in declaration order.
	Fields []FieldSpec

	// Computed are the output-only keys, additive across the chain.
	Computed []ComputedSpec

	// Constructor optionally builds the instance before field
	// population. Must be a zero-argument function returning the
	// instance; a constructor requiring parameters cannot run during
	// hydration and is a ConstructionError unless bypassed.
	Constructor any

	// BypassConstructor allocates via reflect.New instead of invoking
	// Constructor, populating declared fields directly on the zero
	// value. CreateOpts.BypassConstructor forces the same per call.
	BypassConstructor bool
}

///////////////////////////////////////////////////////////////////////////////
// SchemaRegistry
///////////////////////////////////////////////////////////////////////////////

// SchemaRegistry maps struct types to their declared TypeSpecs and
// memoizes resolved schemas. Registration happens once at startup;
// hydration, serialisation and mutation only ever read.
type SchemaRegistry struct {
	mu       sync.RWMutex
	specs    map[reflect.Type]*TypeSpec
	resolved schemaCache
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		specs: make(map[reflect.Type]*TypeSpec),
	}
}

// Register attaches spec to sample's struct type. The spec is validated
// in full and every problem is reported at once; a type with an invalid
// spec is not registered.
//
// sample may be a struct value, a pointer to one, or a reflect.Type.
func (r *SchemaRegistry) Register(sample any, spec TypeSpec) error {
	t, err := structTypeOf(sample)
	if err != nil {
		return err
	}

	if err := validateTypeSpec(t, &spec); err != nil {
		return newError(ErrConfiguration, RootPath, "invalid spec for %s: %v", t.Name(), err)
	}

	normalizeTypeSpec(&spec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[t]; exists {
		return newError(ErrConfiguration, RootPath, "type %s is already registered", t.Name())
	}
	r.specs[t] = &spec
	return nil
}

// MustRegister is Register, panicking on error. Intended for package
// init blocks where a bad spec is a programming error.
func (r *SchemaRegistry) MustRegister(sample any, spec TypeSpec) {
	if err := r.Register(sample, spec); err != nil {
		panic(fmt.Sprintf("hydrate: %v", err))
	}
}

// spec returns the declared TypeSpec for t, if any.
func (r *SchemaRegistry) spec(t reflect.Type) (*TypeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[t]
	return s, ok
}

///////////////////////////////////////////////////////////////////////////////
// Registration-time validation
///////////////////////////////////////////////////////////////////////////////

// validateTypeSpec checks every declared field, computed key and the
// constructor against the Go struct type, accumulating all problems.
func validateTypeSpec(t reflect.Type, spec *TypeSpec) error {
	var errs errsx.Map

	expandoSeen := ""
	for i := range spec.Fields {
		f := &spec.Fields[i]
		ctx := fmt.Sprintf("field %q", f.Name)

		sf, ok := t.FieldByName(f.Name)
		if !ok {
			errs.Set(ctx, fmt.Errorf("no struct field %s on %s", f.Name, t.Name()))
			continue
		}
		if sf.PkgPath != "" {
			errs.Set(ctx, fmt.Errorf("struct field %s is unexported", f.Name))
		}

		if f.Required && f.IfEmpty != nil {
			errs.Set(ctx, fmt.Errorf("required and ifEmpty are mutually exclusive"))
		}

		switch f.Kind {
		case ValueKind, ObjectKind, ArrayKind:
			// fine
		case ExpandoKind:
			if expandoSeen != "" {
				errs.Set(ctx, fmt.Errorf("duplicate expando field, %q already declared", expandoSeen))
			}
			expandoSeen = f.Name
			if sf.Type != ExpandoType {
				errs.Set(ctx, fmt.Errorf("expando field must be map[string]any, got %s", sf.Type))
			}
		default:
			errs.Set(ctx, fmt.Errorf("unknown field kind %d", f.Kind))
		}

		if f.Instantiator != nil {
			if err := validateInstantiator(f); err != nil {
				errs.Set(ctx, err)
			}
		}
	}

	for _, c := range spec.Computed {
		ctx := fmt.Sprintf("computed %q", c.Key)
		m, ok := reflect.PointerTo(t).MethodByName(c.Method)
		if !ok {
			errs.Set(ctx, fmt.Errorf("no method %s on *%s", c.Method, t.Name()))
			continue
		}
		// Receiver counts as the first input.
		mt := m.Func.Type()
		if mt.NumIn() != 1 {
			errs.Set(ctx, fmt.Errorf("method %s must take no arguments", c.Method))
		}
		switch mt.NumOut() {
		case 1:
		case 2:
			if mt.Out(1) != ErrorType {
				errs.Set(ctx, fmt.Errorf("method %s second result must be error", c.Method))
			}
		default:
			errs.Set(ctx, fmt.Errorf("method %s must return one value, optionally with an error", c.Method))
		}
	}

	if spec.Constructor != nil {
		ct := reflect.TypeOf(spec.Constructor)
		if ct.Kind() != reflect.Func || ct.NumOut() != 1 {
			errs.Set("constructor", fmt.Errorf("must be a function returning the instance, got %T", spec.Constructor))
		}
	}

	if spec.Extends != nil {
		if _, err := structTypeOf(spec.Extends); err != nil {
			errs.Set("extends", err)
		}
	}

	return errs.AsError()
}

// validateInstantiator checks the shape of a per-field instantiator
// against the field's kind.
func validateInstantiator(f *FieldSpec) error {
	switch f.Kind {
	case ValueKind:
		switch f.Instantiator.(type) {
		case func(any) (any, error), func(any) any:
			return nil
		}
		return fmt.Errorf("value instantiator must be func(any) (any, error) or func(any) any, got %T", f.Instantiator)
	case ObjectKind, ArrayKind:
		switch inst := f.Instantiator.(type) {
		case reflect.Type, func() any:
			return nil
		default:
			t := reflect.TypeOf(inst)
			if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
				return nil
			}
			return fmt.Errorf("instantiator must be a pointer sample, reflect.Type or func() any, got %T", f.Instantiator)
		}
	case ExpandoKind:
		return fmt.Errorf("expando fields take no instantiator")
	}
	return nil
}

// normalizeTypeSpec forces the neutral values the data model mandates:
// an expando field is never required, never instantiated, never coerced.
func normalizeTypeSpec(spec *TypeSpec) {
	for i := range spec.Fields {
		f := &spec.Fields[i]
		if f.Kind == ExpandoKind {
			f.Required = false
			f.Instantiator = nil
			f.AlwaysInstantiate = false
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// Helpers
///////////////////////////////////////////////////////////////////////////////

// structTypeOf normalizes a sample (struct value, pointer to struct, or
// reflect.Type) to its struct type.
func structTypeOf(sample any) (reflect.Type, error) {
	var t reflect.Type
	switch s := sample.(type) {
	case nil:
		return nil, newError(ErrConfiguration, RootPath, "nil type sample")
	case reflect.Type:
		t = s
	default:
		t = reflect.TypeOf(sample)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newError(ErrConfiguration, RootPath, "expected a struct type, got %s", t)
	}
	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// Global Singleton and Package Functions
///////////////////////////////////////////////////////////////////////////////

var _globalRegistry = NewSchemaRegistry()

// Register registers a TypeSpec with the global registry.
func Register(sample any, spec TypeSpec) error {
	return _globalRegistry.Register(sample, spec)
}

// MustRegister registers a TypeSpec with the global registry, panicking
// on error.
func MustRegister(sample any, spec TypeSpec) {
	_globalRegistry.MustRegister(sample, spec)
}

// Registry returns the global registry, for callers that want to pass it
// around explicitly.
func Registry() *SchemaRegistry {
	return _globalRegistry
}
