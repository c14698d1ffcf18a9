package hydrate

// FieldKind classifies how a declared field participates in hydration
// and serialisation. Exactly one kind applies per field.
type FieldKind int

const (
	// ValueKind is a leaf. The raw value is assigned verbatim, or through
	// the field's coercer when one is declared. Verbatim assignment never
	// clones: a raw map or slice arriving under a ValueKind field aliases
	// the input. This passthrough is deliberate and relied upon.
	ValueKind FieldKind = iota

	// ObjectKind is a single nested schema-driven value, hydrated
	// recursively against the field's instantiator or Go type.
	ObjectKind

	// ArrayKind is an ordered homogeneous sequence of nested
	// schema-driven values. Index alignment is preserved, including
	// null holes.
	ArrayKind

	// ExpandoKind is the single catch-all field of a type, absorbing
	// every input key not consumed by a declared field or computed key.
	// It is never itself recursively hydrated as a typed object.
	ExpandoKind
)

// String implements fmt.Stringer.
func (k FieldKind) String() string {
	switch k {
	case ValueKind:
		return "value"
	case ObjectKind:
		return "object"
	case ArrayKind:
		return "array"
	case ExpandoKind:
		return "expando"
	default:
		return "unknown"
	}
}

// FieldSpec describes one declared field of a hydratable type.
type FieldSpec struct {
	// Name is the Go struct field populated by the hydrator.
	Name string

	// Key is the raw-data key the field reads from and serialises to.
	// Empty means Name.
	Key string

	// Kind selects the hydration strategy.
	Kind FieldKind

	// Required makes an absent key a MissingRequiredProperty error.
	// Mutually exclusive with IfEmpty.
	Required bool

	// Instantiator overrides how the field's value is produced.
	//
	// For ObjectKind and ArrayKind it names the nested target: a pointer
	// sample (&Address{}), a reflect.Type, or a zero-argument factory
	// func() any. When nil, the struct field's own Go type is used.
	//
	// For ValueKind it is a coercer: func(any) (any, error) for
	// constructor-style coercions whose failure is a CoercionError, or
	// func(any) any for plain transforms. When nil, the raw value is
	// assigned verbatim.
	Instantiator any

	// IfEmpty supplies a fallback when the key is missing or null.
	// For ValueKind its result is assigned directly; for ObjectKind and
	// ArrayKind its result is hydrated as if it were the raw input.
	IfEmpty func() any

	// AlwaysInstantiate forces the coercer to run even when the raw
	// value already has the field's Go type. When false, an
	// already-typed value (for instance a time.Time returned by an
	// IfEmpty factory) skips coercion and is assigned as-is.
	AlwaysInstantiate bool
}

// key returns the effective raw-data key.
func (f *FieldSpec) key() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

// ComputedSpec declares an output-only key. The named method is invoked
// on the instance at serialisation time and its result emitted under Key.
// Computed keys never participate in hydration: input values under Key
// are silently dropped, never counted as extra, and never writable
// through CloneWith.
type ComputedSpec struct {
	Key    string
	Method string // zero-argument method, returning T or (T, error)
}
