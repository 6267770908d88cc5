package dataset

import (
	"context"
	"fmt"
	"sync"

	"tablesync/core/utils"
)

// MemTable is an in-memory Table. It backs the engine tests and is handy
// for small one-off jobs where one side of a sync is assembled in code.
type MemTable struct {
	name     string
	keyField string
	schema   Schema

	mu    sync.Mutex
	rows  map[string]Record
	order []string
}

// NewMemTable creates an empty in-memory table keyed by keyField.
func NewMemTable(name, keyField string, schema Schema) *MemTable {
	return &MemTable{
		name:     name,
		keyField: keyField,
		schema:   schema,
		rows:     make(map[string]Record),
	}
}

// Name implements Table.
func (t *MemTable) Name() string { return t.name }

// KeyField implements Table.
func (t *MemTable) KeyField() string { return t.keyField }

// Schema implements Table.
func (t *MemTable) Schema(ctx context.Context) (Schema, error) {
	return t.schema, nil
}

// Seed inserts records directly, bypassing batch accounting. Intended for
// test fixtures and initial population.
func (t *MemTable) Seed(records ...Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		t.put(rec)
	}
}

// put stores a record under its key, preserving first-insertion order.
func (t *MemTable) put(rec Record) {
	key := utils.ToString(rec[t.keyField])
	if _, exists := t.rows[key]; !exists {
		t.order = append(t.order, key)
	}
	t.rows[key] = rec.Clone()
}

// Records implements Table. The iterator walks a snapshot in insertion
// order, so concurrent writes do not disturb an in-flight read.
func (t *MemTable) Records(ctx context.Context) (Iterator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make([]Record, 0, len(t.order))
	for _, key := range t.order {
		snapshot = append(snapshot, t.rows[key].Clone())
	}
	return NewSliceIterator(snapshot), nil
}

// Keys implements Table.
func (t *MemTable) Keys(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, len(t.order))
	copy(keys, t.order)
	return keys, nil
}

// WriteBatch implements Table. Updates and deletes of unknown keys fail the
// batch but leave the records that matched applied, mirroring the partial
// results a remote backend reports.
func (t *MemTable) WriteBatch(ctx context.Context, kind OperationKind, records []Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	succeeded := 0
	var firstErr error
	for _, rec := range records {
		key := utils.ToString(rec[t.keyField])
		switch kind {
		case OpInsert:
			t.put(rec)
			succeeded++
		case OpUpdate:
			if _, ok := t.rows[key]; !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("update of unknown key %q", key)
				}
				continue
			}
			t.rows[key] = rec.Clone()
			succeeded++
		case OpDelete:
			if _, ok := t.rows[key]; !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("delete of unknown key %q", key)
				}
				continue
			}
			delete(t.rows, key)
			t.removeFromOrder(key)
			succeeded++
		default:
			return succeeded, fmt.Errorf("unknown operation kind %q", kind)
		}
	}
	return succeeded, firstErr
}

func (t *MemTable) removeFromOrder(key string) {
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Len returns the current number of records.
func (t *MemTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Get returns the record stored under key, if any.
func (t *MemTable) Get(key string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.rows[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}
