package hydrate

import (
	"reflect"
)

// CloneOpts controls constrained mutation.
type CloneOpts struct {
	// PreserveNullKeys keeps expando keys whose supplied value is null
	// instead of deleting them from the merge result.
	PreserveNullKeys bool
}

///////////////////////////////////////////////////////////////////////////////
// DuplicateInstance
///////////////////////////////////////////////////////////////////////////////

// DuplicateInstance deep-copies an instance through exactly one
// serialise/hydrate round trip, re-validating on the way back in. The
// copy is structurally independent: nothing in it aliases the original.
// A nil instance passes through unchanged.
func (r *SchemaRegistry) DuplicateInstance(instance any) (any, error) {
	if instance == nil {
		return nil, nil
	}
	wire, err := r.SerialiseInstance(instance, SerialiseOpts{NestExpando: true})
	if err != nil {
		return nil, err
	}
	return r.CreateInstance(wire, reflect.TypeOf(instance), CreateOpts{})
}

// DuplicateInstance duplicates using the global registry.
func DuplicateInstance(instance any) (any, error) {
	return _globalRegistry.DuplicateInstance(instance)
}

///////////////////////////////////////////////////////////////////////////////
// CloneWith
///////////////////////////////////////////////////////////////////////////////

// CloneWith produces a new instance with the given declared-field
// changes applied and the whole result re-validated. The original
// instance, including its expando map, is never touched.
//
// changes is schema-level intent: keys must name declared fields or the
// expando key. A computed key or any unknown key is rejected outright.
// Nulling out a required field fails loudly rather than producing an
// invalid instance.
//
// The expando key, when present in changes, must map to a plain map and
// is merged rather than replaced: supplied keys overwrite, null-valued
// supplied keys delete (unless CloneOpts.PreserveNullKeys), absent keys
// are left alone.
func (r *SchemaRegistry) CloneWith(instance any, changes map[string]any, opts CloneOpts) (any, error) {
	if instance == nil {
		return nil, nil
	}

	t, err := structTypeOf(instance)
	if err != nil {
		return nil, err
	}
	schema, err := r.resolveType(t)
	if err != nil {
		return nil, err
	}

	for key := range changes {
		if _, computed := schema.Computed[key]; computed {
			return nil, newError(ErrMutationRejected, childPath(RootPath, key),
				"computed key %q is not writable", key)
		}
		if !schema.declares(key) {
			return nil, newError(ErrMutationRejected, childPath(RootPath, key),
				"key %q is not part of the schema", key)
		}
	}

	if _, hasHook := instance.(CustomSerialiser); hasHook {
		if len(changes) == 0 {
			// Degenerates to exactly one round trip; repeated empty
			// clones must not accumulate hook transformations.
			return r.DuplicateInstance(instance)
		}
		return r.cloneThroughHook(instance, changes, schema, opts)
	}

	snapshot, err := r.SerialiseInstance(instance, SerialiseOpts{NestExpando: true})
	if err != nil {
		return nil, err
	}

	for key, val := range changes {
		if key == schema.ExpandoKey && schema.ExpandoKey != "" {
			continue
		}
		snapshot[key] = val
	}

	if err := mergeExpando(snapshot, changes, schema, opts); err != nil {
		return nil, err
	}

	return r.CreateInstance(snapshot, reflect.TypeOf(instance), CreateOpts{
		ErrorForNullRequired: true,
	})
}

// CloneWith clones using the global registry.
func CloneWith(instance any, changes map[string]any, opts CloneOpts) (any, error) {
	return _globalRegistry.CloneWith(instance, changes, opts)
}

// cloneThroughHook handles types whose wire representation is defined by
// a custom serialisation hook. Schema intent has to be resolved before
// the hook reshapes it, so the changes are applied to a duplicated
// instance first; only then does the hook serialise, and the custom
// deserialisation hook hydrates the result.
func (r *SchemaRegistry) cloneThroughHook(instance any, changes map[string]any, schema *ResolvedSchema, opts CloneOpts) (any, error) {
	dup, err := r.DuplicateInstance(instance)
	if err != nil {
		return nil, err
	}

	elem := reflect.ValueOf(dup).Elem()
	h := &hydrator{reg: r, opts: CreateOpts{ErrorForNullRequired: true}}

	for key, val := range changes {
		if key == schema.ExpandoKey && schema.ExpandoKey != "" {
			if err := mergeExpandoField(elem, schema, val, opts); err != nil {
				return nil, err
			}
			continue
		}
		f := schema.Fields[key]
		fv := elem.FieldByName(f.Name)
		if err := h.hydrateField(fv, f, map[string]any{key: val}, RootPath, key); err != nil {
			return nil, err
		}
	}

	hook, ok := dup.(CustomSerialiser)
	if !ok {
		return nil, newError(ErrSerialisation, RootPath,
			"duplicate of %T lost its serialisation hook", instance)
	}
	wire, err := hook.SerialiseCustom()
	if err != nil {
		return nil, newError(ErrSerialisation, RootPath,
			"custom serialisation hook failed: %v", err)
	}

	return r.CreateInstance(wire, reflect.TypeOf(instance), CreateOpts{
		ErrorForNullRequired: true,
	})
}

///////////////////////////////////////////////////////////////////////////////
// Expando merge
///////////////////////////////////////////////////////////////////////////////

// mergeExpando applies the expando merge semantics to a serialised
// snapshot holding the expando contents nested under the expando key.
func mergeExpando(snapshot map[string]any, changes map[string]any, schema *ResolvedSchema, opts CloneOpts) error {
	if schema.ExpandoKey == "" {
		return nil
	}
	supplied, present := changes[schema.ExpandoKey]
	if !present {
		return nil
	}
	suppliedMap, ok := supplied.(map[string]any)
	if !ok || suppliedMap == nil {
		return newError(ErrMutationRejected, childPath(RootPath, schema.ExpandoKey),
			"expando value must be a map, got %T", supplied)
	}

	base, _ := snapshot[schema.ExpandoKey].(map[string]any)
	if base == nil {
		base = make(map[string]any)
	}
	for k, v := range suppliedMap {
		if v == nil && !opts.PreserveNullKeys {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	if len(base) > 0 {
		snapshot[schema.ExpandoKey] = base
	} else {
		delete(snapshot, schema.ExpandoKey)
	}
	return nil
}

// mergeExpandoField applies the same semantics directly to a duplicated
// instance's expando map (the custom-hook path mutates the duplicate,
// never the original).
func mergeExpandoField(elem reflect.Value, schema *ResolvedSchema, supplied any, opts CloneOpts) error {
	suppliedMap, ok := supplied.(map[string]any)
	if !ok || suppliedMap == nil {
		return newError(ErrMutationRejected, childPath(RootPath, schema.ExpandoKey),
			"expando value must be a map, got %T", supplied)
	}

	fv := elem.FieldByName(schema.ExpandoField)
	base, _ := fv.Interface().(map[string]any)
	if base == nil {
		base = make(map[string]any)
	}
	for k, v := range suppliedMap {
		if v == nil && !opts.PreserveNullKeys {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	if len(base) > 0 {
		fv.Set(reflect.ValueOf(base))
	} else {
		fv.SetZero()
	}
	return nil
}
