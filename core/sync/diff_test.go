package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tablesync/core/dataset"
)

func rowSet(field string, records ...dataset.Record) *RowSet {
	rs := &RowSet{Rows: make(map[string]dataset.Record)}
	for _, rec := range records {
		key := rec[field].(string)
		rs.Keys = append(rs.Keys, key)
		rs.Rows[key] = rec
	}
	return rs
}

func TestDiffPartitionsKeys(t *testing.T) {
	source := rowSet("id",
		dataset.Record{"id": "1", "value": "a"},
		dataset.Record{"id": "2", "value": "b"},
	)
	target := rowSet("id",
		dataset.Record{"id": "2", "value": "x"},
		dataset.Record{"id": "3", "value": "c"},
	)

	diff := Diff(source, target, []string{"value"})

	assert.Equal(t, []string{"1"}, diff.ToInsert)
	assert.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "2", diff.ToUpdate[0].Key)
	assert.Equal(t, "b", diff.ToUpdate[0].Record["value"])
	assert.Equal(t, []string{"3"}, diff.ToDelete)
}

func TestDiffIdenticalSidesAreEmpty(t *testing.T) {
	source := rowSet("id",
		dataset.Record{"id": "1", "value": "a"},
		dataset.Record{"id": "2", "value": "b"},
	)
	target := rowSet("id",
		dataset.Record{"id": "1", "value": "a"},
		dataset.Record{"id": "2", "value": "b"},
	)

	diff := Diff(source, target, []string{"value"})
	assert.True(t, diff.Empty())
}

func TestDiffIsDeterministic(t *testing.T) {
	source := rowSet("id",
		dataset.Record{"id": "9", "value": "a"},
		dataset.Record{"id": "3", "value": "b"},
		dataset.Record{"id": "5", "value": "c"},
	)
	target := rowSet("id",
		dataset.Record{"id": "8", "value": "x"},
		dataset.Record{"id": "2", "value": "y"},
	)

	first := Diff(source, target, []string{"value"})
	second := Diff(source, target, []string{"value"})

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"3", "5", "9"}, first.ToInsert)
	assert.Equal(t, []string{"2", "8"}, first.ToDelete)
}

func TestDiffIgnoresExcludedFields(t *testing.T) {
	source := rowSet("id", dataset.Record{"id": "1", "value": "a", "edited": "today"})
	target := rowSet("id", dataset.Record{"id": "1", "value": "a", "edited": "yesterday"})

	// "edited" is not in the compared field list
	diff := Diff(source, target, []string{"value"})
	assert.True(t, diff.Empty())
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	source := rowSet("id", dataset.Record{"id": "1", "value": "a"})
	target := rowSet("id", dataset.Record{"id": "2", "value": "b"})

	Diff(source, target, []string{"value"})

	assert.Equal(t, []string{"1"}, source.Keys)
	assert.Equal(t, "a", source.Rows["1"]["value"])
	assert.Equal(t, []string{"2"}, target.Keys)
	assert.Equal(t, "b", target.Rows["2"]["value"])
}

func TestValueEqualNulls(t *testing.T) {
	assert.True(t, valueEqual(nil, nil))
	assert.False(t, valueEqual(nil, "a"))
	assert.False(t, valueEqual(0, nil))
}

func TestValueEqualNumericCrossTypes(t *testing.T) {
	assert.True(t, valueEqual(int64(5), float64(5)))
	assert.True(t, valueEqual(int32(5), 5))
	assert.False(t, valueEqual(int64(5), float64(5.5)))
}

func TestValueEqualTimes(t *testing.T) {
	loc := time.FixedZone("plus2", 2*3600)
	utc := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	shifted := utc.In(loc)

	assert.True(t, valueEqual(utc, shifted))
	assert.False(t, valueEqual(utc, utc.Add(time.Second)))
}

func TestValueEqualStrings(t *testing.T) {
	assert.True(t, valueEqual("a", "a"))
	assert.False(t, valueEqual("a", "A"))
	assert.True(t, valueEqual([]byte("a"), "a"))
}
