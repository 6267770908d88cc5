package dataset

import "strings"

// FieldType is the portable type of a field, normalized across backends.
type FieldType string

const (
	// FieldText is a character field of any length.
	FieldText FieldType = "text"
	// FieldInteger is a whole-number field.
	FieldInteger FieldType = "integer"
	// FieldFloat is a floating-point or decimal field.
	FieldFloat FieldType = "float"
	// FieldDate is a date or timestamp field.
	FieldDate FieldType = "date"
	// FieldBoolean is a true/false field.
	FieldBoolean FieldType = "boolean"
	// FieldGeometry is an opaque geometry field, carried but never parsed.
	FieldGeometry FieldType = "geometry"
	// FieldOther is any type that does not map onto the portable set.
	FieldOther FieldType = "other"
)

// FieldDescriptor describes a single field of a dataset schema.
// Descriptors come from backend introspection and are never mutated.
type FieldDescriptor struct {
	// Name is the field name as reported by the backend.
	Name string `json:"name"`

	// Type is the normalized field type.
	Type FieldType `json:"type"`

	// Nullable reports whether the backend allows nulls in this field.
	// Nullability is informational only and is not part of schema
	// compatibility.
	Nullable bool `json:"nullable"`
}

// Schema is the field set of a dataset. Order carries no meaning.
type Schema []FieldDescriptor

// Field returns the descriptor for the named field. The lookup is
// case-insensitive because backends disagree on field name casing.
func (s Schema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, f := range s {
		names = append(names, f.Name)
	}
	return names
}
