package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"tablesync/core/dataset"
)

func TestLoadRowSet(t *testing.T) {
	table := dataset.NewMemTable("source", "id", nil)
	table.Seed(
		dataset.Record{"id": "b", "value": 2},
		dataset.Record{"id": "a", "value": 1},
	)

	rs, err := LoadRowSet(context.Background(), table, "id")
	assert.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"b", "a"}, rs.Keys)
	assert.Equal(t, 1, rs.Rows["a"]["value"])
}

func TestLoadRowSetNumericKeys(t *testing.T) {
	table := dataset.NewMemTable("source", "id", nil)
	table.Seed(dataset.Record{"id": int64(42), "value": "x"})

	rs, err := LoadRowSet(context.Background(), table, "id")
	assert.NoError(t, err)
	assert.Contains(t, rs.Rows, "42")
}

func TestLoadRowSetDuplicateKeyFails(t *testing.T) {
	// Two records carrying the same id under different field values
	src := dataset.NewSliceIterator([]dataset.Record{
		{"id": "1", "value": "a"},
		{"id": "1", "value": "b"},
	})
	table := &iteratorTable{name: "dup", keyField: "id", it: src}

	_, err := LoadRowSet(context.Background(), table, "id")
	assert.Error(t, err)

	dup, ok := err.(*DuplicateKeyError)
	assert.True(t, ok)
	assert.Equal(t, "1", dup.Key)
	assert.Equal(t, "dup", dup.Dataset)
}

func TestLoadRowSetMissingKeyFails(t *testing.T) {
	src := dataset.NewSliceIterator([]dataset.Record{
		{"id": "1", "value": "a"},
		{"value": "b"},
	})
	table := &iteratorTable{name: "holes", keyField: "id", it: src}

	_, err := LoadRowSet(context.Background(), table, "id")
	assert.Error(t, err)

	missing, ok := err.(*MissingKeyFieldError)
	assert.True(t, ok)
	assert.Equal(t, "id", missing.Field)
}

func TestLoadRowSetNullKeyFails(t *testing.T) {
	src := dataset.NewSliceIterator([]dataset.Record{
		{"id": nil, "value": "a"},
	})
	table := &iteratorTable{name: "nulls", keyField: "id", it: src}

	_, err := LoadRowSet(context.Background(), table, "id")
	assert.Error(t, err)
	assert.IsType(t, &MissingKeyFieldError{}, err)
}

func TestLoadAllPreservesOrder(t *testing.T) {
	table := dataset.NewMemTable("source", "id", nil)
	table.Seed(
		dataset.Record{"id": "3"},
		dataset.Record{"id": "1"},
		dataset.Record{"id": "2"},
	)

	records, err := loadAll(context.Background(), table)
	assert.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "3", records[0]["id"])
	assert.Equal(t, "1", records[1]["id"])
	assert.Equal(t, "2", records[2]["id"])
}

// iteratorTable serves a fixed iterator, letting tests feed records a
// MemTable would deduplicate.
type iteratorTable struct {
	name     string
	keyField string
	it       dataset.Iterator
}

func (t *iteratorTable) Name() string     { return t.name }
func (t *iteratorTable) KeyField() string { return t.keyField }

func (t *iteratorTable) Schema(ctx context.Context) (dataset.Schema, error) {
	return nil, nil
}

func (t *iteratorTable) Records(ctx context.Context) (dataset.Iterator, error) {
	return t.it, nil
}

func (t *iteratorTable) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (t *iteratorTable) WriteBatch(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) (int, error) {
	return 0, nil
}
