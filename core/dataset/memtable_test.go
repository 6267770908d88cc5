package dataset

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemTableRoundTrip(t *testing.T) {
	table := NewMemTable("mem", "id", nil)
	table.Seed(
		Record{"id": "1", "value": "a"},
		Record{"id": "2", "value": "b"},
	)

	it, err := table.Records(context.Background())
	assert.NoError(t, err)

	first, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "1", first["id"])

	second, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "2", second["id"])

	_, err = it.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	keys, err := table.Keys(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, keys)
}

func TestMemTableWriteBatchPartialFailure(t *testing.T) {
	table := NewMemTable("mem", "id", nil)
	table.Seed(Record{"id": "1", "value": "a"})

	succeeded, err := table.WriteBatch(context.Background(), OpUpdate, []Record{
		{"id": "1", "value": "changed"},
		{"id": "ghost", "value": "x"},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, succeeded)

	rec, _ := table.Get("1")
	assert.Equal(t, "changed", rec["value"])
}

func TestMemTableSnapshotIsolation(t *testing.T) {
	table := NewMemTable("mem", "id", nil)
	table.Seed(Record{"id": "1", "value": "a"})

	it, err := table.Records(context.Background())
	assert.NoError(t, err)

	// Mutations after the snapshot do not disturb the iterator
	_, err = table.WriteBatch(context.Background(), OpDelete, []Record{{"id": "1"}})
	assert.NoError(t, err)

	rec, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "a", rec["value"])
	assert.Equal(t, 0, table.Len())
}
