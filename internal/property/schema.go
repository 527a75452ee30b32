package property

import (
	"github.com/louisbranch/skirmish.space/internal/errors"
)

// Definition declares a single property in an element schema.
//
// A property without a default is required: instantiation fails when no value
// is supplied for it.
type Definition struct {
	Key     string
	Kind    Kind
	Array   bool
	Default *Value
}

// Required reports whether the property must be supplied at instantiation.
func (d Definition) Required() bool { return d.Default == nil }

// Schema is an ordered set of property definitions. Order is declaration
// order and is preserved through merges so wire enumeration stays stable.
type Schema struct {
	defs  []Definition
	byKey map[string]int
}

// NewSchema builds a schema from ordered definitions. Declaring the same key
// twice is a SchemaError.
func NewSchema(defs ...Definition) (*Schema, error) {
	schema := &Schema{byKey: make(map[string]int, len(defs))}
	for _, def := range defs {
		if _, exists := schema.byKey[def.Key]; exists {
			return nil, errors.E(errors.CodeSchemaUnknownProperty, "property %q declared twice", def.Key)
		}
		if def.Default != nil {
			if def.Default.Kind() != def.Kind || def.Default.IsArray() != def.Array {
				return nil, errors.E(errors.CodeSchemaTypeMismatch,
					"default for %q is %s (array=%t), schema declares %s (array=%t)",
					def.Key, def.Default.Kind(), def.Default.IsArray(), def.Kind, def.Array)
			}
		}
		schema.byKey[def.Key] = len(schema.defs)
		schema.defs = append(schema.defs, def)
	}
	return schema, nil
}

// MergeSchemas combines a shared base schema with an element schema. Element
// re-declarations take precedence on key collision, keeping the base position;
// element-only keys append in element order.
func MergeSchemas(base, element *Schema) *Schema {
	if base == nil {
		base = &Schema{byKey: map[string]int{}}
	}
	merged := &Schema{byKey: make(map[string]int, len(base.defs))}
	for _, def := range base.defs {
		merged.byKey[def.Key] = len(merged.defs)
		merged.defs = append(merged.defs, def)
	}
	if element == nil {
		return merged
	}
	for _, def := range element.defs {
		if at, exists := merged.byKey[def.Key]; exists {
			merged.defs[at] = def
			continue
		}
		merged.byKey[def.Key] = len(merged.defs)
		merged.defs = append(merged.defs, def)
	}
	return merged
}

// Definitions returns the ordered definitions.
func (s *Schema) Definitions() []Definition {
	if s == nil {
		return nil
	}
	return s.defs
}

// Lookup finds the definition declared for key.
func (s *Schema) Lookup(key string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	at, ok := s.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return s.defs[at], true
}

// Len reports the number of declared properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.defs)
}

// Map holds assigned property values keyed by property name.
type Map map[string]Value

// Apply validates values against the schema and returns a complete map:
// every assigned value must match its declared tag and array flag, unknown
// keys are rejected, and absent optional keys fall back to their defaults.
// An absent required key is a SchemaError.
func (s *Schema) Apply(values Map) (Map, error) {
	out := make(Map, s.Len())
	for key, value := range values {
		def, ok := s.Lookup(key)
		if !ok {
			return nil, errors.E(errors.CodeSchemaUnknownProperty, "property %q is not declared", key)
		}
		if value.Kind() != def.Kind || value.IsArray() != def.Array {
			return nil, errors.E(errors.CodeSchemaTypeMismatch,
				"property %q is %s (array=%t), schema declares %s (array=%t)",
				key, value.Kind(), value.IsArray(), def.Kind, def.Array)
		}
		out[key] = value
	}
	for _, def := range s.Definitions() {
		if _, assigned := out[def.Key]; assigned {
			continue
		}
		if def.Default == nil {
			return nil, errors.E(errors.CodeSchemaMissingRequired, "property %q is required", def.Key)
		}
		out[def.Key] = *def.Default
	}
	return out, nil
}
