package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tablesync/core/dataset"
)

func schemaOf(fields ...dataset.FieldDescriptor) dataset.Schema {
	return dataset.Schema(fields)
}

func field(name string, ft dataset.FieldType) dataset.FieldDescriptor {
	return dataset.FieldDescriptor{Name: name, Type: ft}
}

func TestCompareSchemasIdentical(t *testing.T) {
	s := schemaOf(
		field("id", dataset.FieldText),
		field("amount", dataset.FieldFloat),
	)
	assert.NoError(t, CompareSchemas(s, s, nil))
}

func TestCompareSchemasCaseInsensitive(t *testing.T) {
	source := schemaOf(field("Asset_ID", dataset.FieldText))
	target := schemaOf(field("asset_id", dataset.FieldText))
	assert.NoError(t, CompareSchemas(source, target, nil))
}

func TestCompareSchemasCollectsAllProblems(t *testing.T) {
	source := schemaOf(
		field("id", dataset.FieldText),
		field("only_source", dataset.FieldText),
		field("amount", dataset.FieldText),
	)
	target := schemaOf(
		field("id", dataset.FieldText),
		field("only_target", dataset.FieldText),
		field("amount", dataset.FieldFloat),
	)

	err := CompareSchemas(source, target, nil)
	assert.Error(t, err)

	mismatch, ok := err.(*SchemaMismatchError)
	assert.True(t, ok)
	assert.Equal(t, []string{"only_source"}, mismatch.MissingInTarget)
	assert.Equal(t, []string{"only_target"}, mismatch.MissingInSource)
	assert.Len(t, mismatch.TypeConflicts, 1)
	assert.Equal(t, "amount", mismatch.TypeConflicts[0].Field)
}

func TestCompareSchemasIntegerWidensToFloat(t *testing.T) {
	source := schemaOf(field("amount", dataset.FieldInteger))
	target := schemaOf(field("amount", dataset.FieldFloat))
	assert.NoError(t, CompareSchemas(source, target, nil))

	// The widening is one-directional
	assert.Error(t, CompareSchemas(target, source, nil))
}

func TestCompareSchemasNullabilityIgnored(t *testing.T) {
	source := schemaOf(dataset.FieldDescriptor{Name: "id", Type: dataset.FieldText, Nullable: true})
	target := schemaOf(dataset.FieldDescriptor{Name: "id", Type: dataset.FieldText, Nullable: false})
	assert.NoError(t, CompareSchemas(source, target, nil))
}

func TestCompareSchemasSkipsTrackingFields(t *testing.T) {
	source := schemaOf(
		field("id", dataset.FieldText),
		field("created_user", dataset.FieldText),
		field("shape_length", dataset.FieldFloat),
	)
	target := schemaOf(field("id", dataset.FieldText))
	assert.NoError(t, CompareSchemas(source, target, nil))
}

func TestCompareSchemasCustomExclusions(t *testing.T) {
	source := schemaOf(
		field("id", dataset.FieldText),
		field("internal_notes", dataset.FieldText),
	)
	target := schemaOf(field("id", dataset.FieldText))

	assert.Error(t, CompareSchemas(source, target, nil))
	assert.NoError(t, CompareSchemas(source, target, []string{"Internal_Notes"}))
}

func TestComparedFieldsSkipsKeyAndExclusions(t *testing.T) {
	source := schemaOf(
		field("Asset_ID", dataset.FieldText),
		field("Name", dataset.FieldText),
		field("created_date", dataset.FieldDate),
		field("Status", dataset.FieldText),
	)

	fields := ComparedFields(source, "asset_id", nil)
	assert.Equal(t, []string{"name", "status"}, fields)
}
