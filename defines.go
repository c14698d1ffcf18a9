package hydrate

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// RootPath is the default context path for the outermost value of a
// hydration or serialisation walk. Nested paths are derived from it in
// dotted/bracketed form, e.g. "root.children[2].id".
const RootPath = "root"

// Struct tag read by FieldsFromTags.
const (
	FieldTagPrefix   = "hydrate"
	TagModifierDelim = ","
	TagSkipValue     = "-"
)

// Modifiers recognised inside a `hydrate` tag.
const (
	RequiredTagModifier = "required"
	ExpandoTagModifier  = "expando"
	AlwaysTagModifier   = "always"
)

// reflect.Type constants for special leaf types that are never walked
// recursively.
var (
	TimeType    = reflect.TypeOf(time.Time{})
	UUIDType    = reflect.TypeOf(uuid.UUID{})
	ExpandoType = reflect.TypeOf(map[string]any{})
	ErrorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Accepted layouts when coercing a string into a time.Time, tried in
// order. RFC 3339 is also the canonical serialisation format.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}
