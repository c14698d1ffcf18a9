package hydrate

import (
	"github.com/tidwall/gjson"
)

// CreateInstanceFromJSON parses raw JSON and hydrates the resulting
// untyped tree. The JSON document must be an object (or whatever shape a
// custom hydration hook on the target accepts).
func (r *SchemaRegistry) CreateInstanceFromJSON(data []byte, target any, opts CreateOpts) (any, error) {
	path := opts.Path
	if path == "" {
		path = RootPath
	}
	if !gjson.ValidBytes(data) {
		return nil, newError(ErrTypeMismatch, path, "invalid JSON document")
	}
	return r.CreateInstance(gjson.ParseBytes(data).Value(), target, opts)
}

// ValidateJSON parses raw JSON and validates it in collecting mode.
func (r *SchemaRegistry) ValidateJSON(data []byte, target any) ValidationResult {
	if !gjson.ValidBytes(data) {
		return ValidationResult{
			Errors: ErrorList{newError(ErrTypeMismatch, RootPath, "invalid JSON document")},
		}
	}
	return r.ValidateInstance(gjson.ParseBytes(data).Value(), target)
}

// CreateInstanceFromJSON hydrates JSON using the global registry.
func CreateInstanceFromJSON(data []byte, target any, opts CreateOpts) (any, error) {
	return _globalRegistry.CreateInstanceFromJSON(data, target, opts)
}

// ValidateJSON validates JSON using the global registry.
func ValidateJSON(data []byte, target any) ValidationResult {
	return _globalRegistry.ValidateJSON(data, target)
}
