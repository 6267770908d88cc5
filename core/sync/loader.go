package sync

import (
	"context"
	"errors"
	"io"
	"strings"

	"tablesync/core/dataset"
	"tablesync/core/utils"
)

// LoadRowSet reads every record of the table into memory, keyed by idField.
// A record without a key value or with a key already seen fails the load;
// the diff cannot reconcile ambiguous rows, so neither problem is skippable.
func LoadRowSet(ctx context.Context, table dataset.Table, idField string) (*RowSet, error) {
	it, err := table.Records(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	field := strings.ToLower(idField)
	rs := &RowSet{Rows: make(map[string]dataset.Record)}

	for {
		rec, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		val, ok := rec[field]
		if !ok || utils.IsNull(val) {
			return nil, &MissingKeyFieldError{Dataset: table.Name(), Field: idField}
		}
		key := utils.ToString(val)
		if key == "" {
			return nil, &MissingKeyFieldError{Dataset: table.Name(), Field: idField}
		}
		if _, dup := rs.Rows[key]; dup {
			return nil, &DuplicateKeyError{Dataset: table.Name(), Field: idField, Key: key}
		}

		rs.Keys = append(rs.Keys, key)
		rs.Rows[key] = rec
	}
	return rs, nil
}

// loadAll reads every record of the table into a slice, preserving stream
// order. Used by the TRUNCATE path, which needs rows but no keying.
func loadAll(ctx context.Context, table dataset.Table) ([]dataset.Record, error) {
	it, err := table.Records(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var records []dataset.Record
	for {
		rec, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
