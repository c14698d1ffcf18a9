package hydrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrUnknownTagModifier = errors.New("unknown tag modifier")
	ErrInvalidFieldTag    = errors.New("invalid field tag")
)

// FieldsFromTags derives field specs from `hydrate` struct tags, as a
// registration-time convenience for the common case where no coercers or
// fallbacks are needed. The tag grammar is:
//
//	hydrate:"<key>[,required][,expando][,always]"
//
// An empty key means the Go field name; "-" skips the field; untagged
// fields are skipped. The field kind is inferred from the Go type:
// structs and pointers to structs hydrate as objects, slices of them as
// arrays, a map[string]any marked `expando` as the catch-all, everything
// else as a leaf value.
//
// The result feeds TypeSpec.Fields and goes through the same
// registration-time validation as hand-written specs; instantiators and
// IfEmpty fallbacks can still be set on the returned specs before
// registering.
func FieldsFromTags(sample any) ([]FieldSpec, error) {
	t, err := structTypeOf(sample)
	if err != nil {
		return nil, err
	}

	var fields []FieldSpec
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous || sf.PkgPath != "" {
			continue
		}
		tag, ok := sf.Tag.Lookup(FieldTagPrefix)
		if !ok || tag == TagSkipValue {
			continue
		}

		f, err := decodeFieldTag(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// RegisterTagged registers sample with spec, deriving spec.Fields from
// struct tags when none were declared explicitly.
func (r *SchemaRegistry) RegisterTagged(sample any, spec TypeSpec) error {
	if len(spec.Fields) == 0 {
		fields, err := FieldsFromTags(sample)
		if err != nil {
			return err
		}
		spec.Fields = fields
	}
	return r.Register(sample, spec)
}

// RegisterTagged registers with the global registry.
func RegisterTagged(sample any, spec TypeSpec) error {
	return _globalRegistry.RegisterTagged(sample, spec)
}

func decodeFieldTag(sf reflect.StructField, tag string) (FieldSpec, error) {
	parts := strings.Split(tag, TagModifierDelim)
	key := strings.TrimSpace(parts[0])
	if key == "" {
		key = sf.Name
	}

	f := FieldSpec{
		Name: sf.Name,
		Key:  key,
		Kind: inferKind(sf.Type),
	}

	for _, mod := range parts[1:] {
		switch strings.TrimSpace(mod) {
		case RequiredTagModifier:
			f.Required = true
		case ExpandoTagModifier:
			f.Kind = ExpandoKind
		case AlwaysTagModifier:
			f.AlwaysInstantiate = true
		case "":
			return FieldSpec{}, fmt.Errorf("%w: %q", ErrInvalidFieldTag, tag)
		default:
			return FieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownTagModifier, mod)
		}
	}
	return f, nil
}

// inferKind maps a Go field type to the hydration kind it naturally
// carries. time.Time and uuid.UUID are leaves despite being structs.
func inferKind(t reflect.Type) FieldKind {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		if base == TimeType || base == UUIDType {
			return ValueKind
		}
		return ObjectKind
	case reflect.Slice:
		if base.Elem().Kind() == reflect.Uint8 {
			return ValueKind // []byte payloads stay opaque
		}
		return ArrayKind
	default:
		return ValueKind
	}
}
