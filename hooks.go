package hydrate

// CustomHydrator lets a type own its entire deserialisation contract.
// When the hydrator's target implements it (pointer receiver), the
// instance is allocated and HydrateCustom is called with the raw data;
// the schema walk for that subtree is skipped entirely.
type CustomHydrator interface {
	HydrateCustom(data any) error
}

// CustomSerialiser is the inverse capability. When an instance
// implements it, SerialiseCustom's result is the full wire contract for
// that subtree and the schema walk is skipped.
//
// A type implementing CustomSerialiser should implement CustomHydrator
// too, otherwise CloneWith and DuplicateInstance cannot round-trip it.
type CustomSerialiser interface {
	SerialiseCustom() (map[string]any, error)
}
