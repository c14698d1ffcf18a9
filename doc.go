// Package hydrate converts untyped structured data (maps, arrays and
// scalars) into typed, schema-validated struct instances, and back, with
// constrained re-validated mutation.
//
// A declared schema is the single source of truth: each hydratable type
// registers a TypeSpec describing its fields (kind, requiredness,
// instantiation strategy, empty-value fallback), its output-only computed
// keys, and optionally the type it extends. Schemas are resolved once per
// type (inheritance chains are flattened with subtype-over-supertype
// shadowing) and cached for every later hydration.
//
// The package provides four groups of operations:
//   - Hydration: CreateInstance and CreateInstanceFromJSON turn raw data
//     into a populated instance, either failing on the first problem or
//     collecting every error with its path (see CreateOpts.CollectErrors).
//     ValidateInstance is the always-collecting convenience form.
//   - Serialisation: SerialiseInstance is the inverse walk, producing
//     plain data only. Dates become RFC 3339 strings, containers are
//     deep-cloned, computed getters are evaluated.
//   - Mutation: CloneWith produces a new, fully re-validated instance
//     from an existing one plus a set of declared-field changes;
//     DuplicateInstance is a deep copy through one serialise/hydrate
//     round trip. Neither ever mutates its input.
//   - Declaration: Register attaches a TypeSpec to a type; FieldsFromTags
//     derives field specs from `hydrate` struct tags for the common case.
//
// Types may take over their own wire contract by implementing the
// CustomHydrator and CustomSerialiser interfaces. When present, the hook
// owns the full subtree and the schema walk is skipped.
//
// Every field declares one of four kinds:
//   - Value: leaf, assigned verbatim or through an explicit coercer.
//     Verbatim assignment deliberately aliases container values.
//   - Object: a single nested schema-driven value.
//   - Array: an ordered sequence of nested schema-driven values.
//   - Expando: the single catch-all field absorbing undeclared input keys.
//
// All operations are synchronous, pure transformations over immutable
// input plus freshly allocated output. There is no I/O and no shared
// mutable state beyond the write-once schema cache.
package hydrate
