package hydrate

import (
	"reflect"
	"sync"
)

///////////////////////////////////////////////////////////////////////////////
// ResolvedSchema
///////////////////////////////////////////////////////////////////////////////

// ResolvedSchema is the flattened view of a type's full inheritance
// chain: every declared field keyed by its raw-data key with
// most-derived declarations shadowing supertype ones, the single expando
// field if any, and the additive set of computed keys.
//
// A ResolvedSchema is computed once per type and cached; it is never
// mutated after resolution.
type ResolvedSchema struct {
	Type reflect.Type

	// Fields maps raw-data key to the winning FieldSpec. Expando is kept
	// out of this map.
	Fields map[string]*FieldSpec

	// Order lists field keys most-derived-first, in declaration order
	// within each level, shadowed declarations omitted.
	Order []string

	// ExpandoKey and ExpandoField identify the catch-all field; both are
	// empty when the chain declares none.
	ExpandoKey   string
	ExpandoField string

	// Computed maps output-only keys to their getter specs.
	Computed      map[string]*ComputedSpec
	ComputedOrder []string

	// Constructor and BypassConstructor come from the most-derived spec
	// only; a supertype's constructor builds the wrong type.
	Constructor       any
	BypassConstructor bool
}

// declares reports whether key names a declared field, the expando field
// or a computed key.
func (s *ResolvedSchema) declares(key string) bool {
	if _, ok := s.Fields[key]; ok {
		return true
	}
	if _, ok := s.Computed[key]; ok {
		return true
	}
	return key != "" && key == s.ExpandoKey
}

///////////////////////////////////////////////////////////////////////////////
// Resolution
///////////////////////////////////////////////////////////////////////////////

// Resolve flattens sample's inheritance chain into a ResolvedSchema.
// Resolution is a pure function of the registered specs and is memoized
// per type: the first committed result wins and is reused for every
// later call (see schemaCache).
//
// More than one distinct expando field anywhere in the chain is an
// ErrConfiguration surfaced here, before any instance is touched.
func (r *SchemaRegistry) Resolve(sample any) (*ResolvedSchema, error) {
	t, err := structTypeOf(sample)
	if err != nil {
		return nil, err
	}
	return r.resolveType(t)
}

func (r *SchemaRegistry) resolveType(t reflect.Type) (*ResolvedSchema, error) {
	if cached, ok := r.resolved.get(t); ok {
		return cached, nil
	}

	schema, err := r.buildSchema(t)
	if err != nil {
		return nil, err
	}

	// First successful resolution wins; a benign race recomputing the
	// same pure result is acceptable.
	return r.resolved.commit(t, schema), nil
}

// buildSchema walks the Extends chain from most-derived to
// least-derived, keeping the first descriptor seen per key and
// collecting computed keys from every level.
func (r *SchemaRegistry) buildSchema(t reflect.Type) (*ResolvedSchema, error) {
	schema := &ResolvedSchema{
		Type:     t,
		Fields:   make(map[string]*FieldSpec),
		Computed: make(map[string]*ComputedSpec),
	}

	seen := make(map[reflect.Type]bool)
	current := t
	level := 0
	for current != nil {
		if seen[current] {
			return nil, newError(ErrConfiguration, RootPath,
				"inheritance cycle through %s", current.Name())
		}
		seen[current] = true

		spec, ok := r.spec(current)
		if !ok {
			return nil, newError(ErrConfiguration, RootPath,
				"type %s is not registered", current.Name())
		}

		for i := range spec.Fields {
			f := &spec.Fields[i]
			if f.Kind == ExpandoKind {
				if schema.ExpandoField != "" && schema.ExpandoField != f.Name {
					return nil, newError(ErrConfiguration, RootPath,
						"duplicate expando field: %s and %s in the chain of %s",
						schema.ExpandoField, f.Name, t.Name())
				}
				schema.ExpandoField = f.Name
				schema.ExpandoKey = f.key()
				continue
			}
			key := f.key()
			if _, shadowed := schema.Fields[key]; shadowed {
				continue
			}
			schema.Fields[key] = f
			schema.Order = append(schema.Order, key)
		}

		for i := range spec.Computed {
			c := &spec.Computed[i]
			if _, shadowed := schema.Computed[c.Key]; shadowed {
				continue
			}
			schema.Computed[c.Key] = c
			schema.ComputedOrder = append(schema.ComputedOrder, c.Key)
		}

		if level == 0 {
			schema.Constructor = spec.Constructor
			schema.BypassConstructor = spec.BypassConstructor
		}

		if spec.Extends == nil {
			break
		}
		parent, err := structTypeOf(spec.Extends)
		if err != nil {
			return nil, err
		}
		current = parent
		level++
	}

	return schema, nil
}

///////////////////////////////////////////////////////////////////////////////
// schemaCache
///////////////////////////////////////////////////////////////////////////////

// schemaCache memoizes resolved schemas per struct type. Entries are
// write-once: commit keeps whichever schema landed first, so concurrent
// readers always observe a single value per type.
type schemaCache struct {
	cache sync.Map // reflect.Type -> *ResolvedSchema
}

func (sc *schemaCache) get(t reflect.Type) (*ResolvedSchema, bool) {
	if v, ok := sc.cache.Load(t); ok {
		return v.(*ResolvedSchema), true
	}
	return nil, false
}

func (sc *schemaCache) commit(t reflect.Type, schema *ResolvedSchema) *ResolvedSchema {
	actual, _ := sc.cache.LoadOrStore(t, schema)
	return actual.(*ResolvedSchema)
}
