package sync

import (
	"strings"

	"tablesync/core/dataset"
)

// DefaultExcludedFields are editor-tracking and derived fields that backends
// maintain themselves. They are skipped by the schema gate and never
// compared or written.
var DefaultExcludedFields = []string{
	"created_user",
	"created_date",
	"creationdate",
	"creator",
	"createdate",
	"last_edited_user",
	"last_edited_date",
	"edited_date",
	"editor",
	"editdate",
	"globalid",
	"objectid",
	"shape_length",
	"shape_area",
	"shape__length",
	"shape__area",
	"st_length(shape)",
	"st_area(shape)",
}

// exclusionSet builds the lowercase lookup of excluded field names, merging
// the built-in exclusions with extras and the key field's exemption list.
func exclusionSet(extra []string) map[string]bool {
	set := make(map[string]bool, len(DefaultExcludedFields)+len(extra))
	for _, name := range DefaultExcludedFields {
		set[strings.ToLower(name)] = true
	}
	for _, name := range extra {
		set[strings.ToLower(name)] = true
	}
	return set
}

// CompareSchemas checks that source and target agree on every non-excluded
// field. Field matching is case-insensitive; nullability is ignored. A nil
// return means the gate passes and writes may proceed.
func CompareSchemas(source, target dataset.Schema, excluded []string) error {
	skip := exclusionSet(excluded)

	mismatch := &SchemaMismatchError{}

	for _, f := range source {
		name := strings.ToLower(f.Name)
		if skip[name] {
			continue
		}
		tf, ok := target.Field(f.Name)
		if !ok {
			mismatch.MissingInTarget = append(mismatch.MissingInTarget, name)
			continue
		}
		if !typesCompatible(f.Type, tf.Type) {
			mismatch.TypeConflicts = append(mismatch.TypeConflicts, TypeConflict{
				Field:      name,
				SourceType: f.Type,
				TargetType: tf.Type,
			})
		}
	}

	for _, f := range target {
		name := strings.ToLower(f.Name)
		if skip[name] {
			continue
		}
		if _, ok := source.Field(f.Name); !ok {
			mismatch.MissingInSource = append(mismatch.MissingInSource, name)
		}
	}

	if len(mismatch.MissingInTarget) > 0 || len(mismatch.MissingInSource) > 0 || len(mismatch.TypeConflicts) > 0 {
		return mismatch
	}
	return nil
}

// typesCompatible reports whether a source value of type a can be written
// into a target field of type b. Integer widens into float; everything else
// must match exactly.
func typesCompatible(a, b dataset.FieldType) bool {
	if a == b {
		return true
	}
	if a == dataset.FieldInteger && b == dataset.FieldFloat {
		return true
	}
	return false
}

// ComparedFields returns the lowercased field names the diff will compare:
// every source field minus exclusions and the key field itself.
func ComparedFields(source dataset.Schema, idField string, excluded []string) []string {
	skip := exclusionSet(excluded)
	skip[strings.ToLower(idField)] = true

	var fields []string
	for _, f := range source {
		name := strings.ToLower(f.Name)
		if skip[name] {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}
