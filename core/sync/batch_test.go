package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"tablesync/core/dataset"
)

// flakyTable wraps a MemTable and fails whole batches by batch number.
type flakyTable struct {
	*dataset.MemTable
	calls     int
	failCalls map[int]bool
}

func (f *flakyTable) WriteBatch(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) (int, error) {
	call := f.calls
	f.calls++
	if f.failCalls[call] {
		return 0, errors.New("backend rejected batch")
	}
	return f.MemTable.WriteBatch(ctx, kind, records)
}

func makeRecords(n int) []dataset.Record {
	records := make([]dataset.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, dataset.Record{"id": strconv.Itoa(i), "value": fmt.Sprintf("v%d", i)})
	}
	return records
}

func TestWriteChunking(t *testing.T) {
	target := dataset.NewMemTable("target", "id", nil)
	writer := NewBatchWriter(target, 250, nil)

	outcomes, err := writer.write(context.Background(), dataset.OpInsert, makeRecords(600))
	assert.NoError(t, err)
	assert.Len(t, outcomes, 3)

	assert.Equal(t, 250, outcomes[0].Attempted)
	assert.Equal(t, 250, outcomes[1].Attempted)
	assert.Equal(t, 100, outcomes[2].Attempted)
	for i, o := range outcomes {
		assert.Equal(t, i, o.BatchIndex)
		assert.Equal(t, o.Attempted, o.Succeeded)
		assert.NoError(t, o.Err)
	}
	assert.Equal(t, 600, target.Len())
}

func TestWriteExactMultiple(t *testing.T) {
	target := dataset.NewMemTable("target", "id", nil)
	writer := NewBatchWriter(target, 100, nil)

	outcomes, err := writer.write(context.Background(), dataset.OpInsert, makeRecords(200))
	assert.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, 100, outcomes[0].Attempted)
	assert.Equal(t, 100, outcomes[1].Attempted)
}

func TestWriteContinuesPastFailedBatch(t *testing.T) {
	target := &flakyTable{
		MemTable:  dataset.NewMemTable("target", "id", nil),
		failCalls: map[int]bool{1: true},
	}
	writer := NewBatchWriter(target, 100, nil)

	outcomes, err := writer.write(context.Background(), dataset.OpInsert, makeRecords(300))
	assert.NoError(t, err)
	assert.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)

	// Indices stay stable regardless of the failure
	assert.Equal(t, 0, outcomes[0].BatchIndex)
	assert.Equal(t, 1, outcomes[1].BatchIndex)
	assert.Equal(t, 2, outcomes[2].BatchIndex)

	assert.Equal(t, 100, outcomes[0].Succeeded)
	assert.Equal(t, 0, outcomes[1].Succeeded)
	assert.Equal(t, 100, outcomes[2].Succeeded)
	assert.Equal(t, 200, target.Len())
}

func TestWriteHonorsCancellationBetweenBatches(t *testing.T) {
	target := dataset.NewMemTable("target", "id", nil)
	writer := NewBatchWriter(target, 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := writer.write(ctx, dataset.OpInsert, makeRecords(300))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
	assert.Equal(t, 0, target.Len())
}

func TestWriteDefaultChunkSize(t *testing.T) {
	writer := NewBatchWriter(dataset.NewMemTable("target", "id", nil), 0, nil)
	assert.Equal(t, DefaultChunkSize, writer.ChunkSize)
}

func TestApplyOrdersOperations(t *testing.T) {
	target := &flakyTable{
		MemTable:  dataset.NewMemTable("target", "id", nil),
		failCalls: map[int]bool{},
	}
	target.Seed(
		dataset.Record{"id": "2", "value": "old"},
		dataset.Record{"id": "3", "value": "c"},
	)
	writer := NewBatchWriter(target, 250, nil)

	source := rowSet("id",
		dataset.Record{"id": "1", "value": "a"},
		dataset.Record{"id": "2", "value": "b"},
	)
	diff := &DiffResult{
		ToInsert: []string{"1"},
		ToUpdate: []Update{{Key: "2", Record: source.Rows["2"]}},
		ToDelete: []string{"3"},
	}

	outcomes, err := writer.Apply(context.Background(), diff, source, "id")
	assert.NoError(t, err)
	assert.Len(t, outcomes, 3)

	// Updates first, then inserts, then deletes
	assert.Equal(t, dataset.OpUpdate, outcomes[0].Kind)
	assert.Equal(t, dataset.OpInsert, outcomes[1].Kind)
	assert.Equal(t, dataset.OpDelete, outcomes[2].Kind)

	assert.Equal(t, 2, target.Len())
	rec, ok := target.Get("2")
	assert.True(t, ok)
	assert.Equal(t, "b", rec["value"])
	_, gone := target.Get("3")
	assert.False(t, gone)
}

func TestReloadDeleteFailureStillInserts(t *testing.T) {
	target := &flakyTable{
		MemTable:  dataset.NewMemTable("target", "id", nil),
		failCalls: map[int]bool{0: true},
	}
	target.Seed(dataset.Record{"id": "old", "value": "stale"})
	writer := NewBatchWriter(target, 250, nil)

	records := []dataset.Record{
		{"id": "4", "value": "d"},
		{"id": "5", "value": "e"},
	}
	outcomes, err := writer.Reload(context.Background(), records, []string{"old"}, "id")
	assert.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)

	// The reload went through even though the wipe failed
	_, kept := target.Get("4")
	assert.True(t, kept)
	_, kept = target.Get("5")
	assert.True(t, kept)
}
