package dataset

import (
	"context"
	"io"
)

// OperationKind is the kind of mutation carried by a write batch.
type OperationKind string

const (
	// OpInsert adds new records to the dataset.
	OpInsert OperationKind = "insert"
	// OpUpdate replaces the non-key fields of existing records, matched by
	// the table's key field.
	OpUpdate OperationKind = "update"
	// OpDelete removes records. Delete batches carry key-only records.
	OpDelete OperationKind = "delete"
)

// Record is one row of a dataset, keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// KeyRecord builds the key-only record used by delete batches.
func KeyRecord(field, key string) Record {
	return Record{field: key}
}

// Iterator streams the records of a dataset. It is finite and single-pass;
// restarting means calling Records again.
type Iterator interface {
	// Next returns the next record, or io.EOF when the stream is done.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the iterator.
	Close() error
}

// Table is the engine's view of a tabular dataset. Implementations wrap a
// concrete backend (SQL table, remote feature service, in-memory fixture).
type Table interface {
	// Name identifies the dataset in logs and errors.
	Name() string

	// KeyField returns the field this table is keyed by for writes and
	// key enumeration.
	KeyField() string

	// Schema introspects the dataset's fields.
	Schema(ctx context.Context) (Schema, error)

	// Records streams every record of the dataset.
	Records(ctx context.Context) (Iterator, error)

	// Keys enumerates the values of the key field for every record,
	// without loading full rows.
	Keys(ctx context.Context) ([]string, error)

	// WriteBatch applies one batch of mutations in a single backend call
	// and returns how many records succeeded. A non-nil error means the
	// batch failed wholly or partially; succeeded still reflects the
	// records that went through.
	WriteBatch(ctx context.Context, kind OperationKind, records []Record) (succeeded int, err error)
}

// sliceIterator adapts an in-memory slice to the Iterator contract.
type sliceIterator struct {
	records []Record
	pos     int
}

// NewSliceIterator returns an Iterator over the given records.
func NewSliceIterator(records []Record) Iterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.records) {
		return nil, io.EOF
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, nil
}

func (it *sliceIterator) Close() error { return nil }
