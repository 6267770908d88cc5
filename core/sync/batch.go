package sync

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tablesync/core/dataset"
	"tablesync/core/logger"
)

// DefaultChunkSize caps records per write batch when the spec leaves it
// unset.
const DefaultChunkSize = 250

// BatchWriter chunks record lists and applies them to a target table one
// backend call per chunk. Failed chunks are recorded and skipped over, never
// retried, so one bad batch cannot block the rest of a run.
type BatchWriter struct {
	Target    dataset.Table
	ChunkSize int
	Log       *zap.Logger
}

// NewBatchWriter builds a writer for the target. size <= 0 selects the
// default chunk size.
func NewBatchWriter(target dataset.Table, size int, log *zap.Logger) *BatchWriter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchWriter{Target: target, ChunkSize: size, Log: log}
}

// write applies records of one kind in chunks. Batch indices are assigned
// before any write happens, so the ledger's numbering is stable regardless
// of which batches fail. Cancellation is honored between batches only; a
// batch in flight always runs to its backend's completion.
func (w *BatchWriter) write(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) ([]BatchOutcome, error) {
	var outcomes []BatchOutcome

	for start, index := 0, 0; start < len(records); start, index = start+w.ChunkSize, index+1 {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		end := start + w.ChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		succeeded, err := w.Target.WriteBatch(ctx, kind, chunk)
		outcome := BatchOutcome{
			BatchIndex: index,
			Kind:       kind,
			Attempted:  len(chunk),
			Succeeded:  succeeded,
			Err:        err,
		}
		outcomes = append(outcomes, outcome)

		if err != nil {
			w.Log.Warn("Batch failed",
				logger.Topic("batch"),
				logger.Code("BATCH_FAILED"),
				zap.String("operation", string(kind)),
				zap.Int("batch", index),
				zap.Int("attempted", len(chunk)),
				zap.Int("succeeded", succeeded),
				zap.Error(err))
			continue
		}
		w.Log.Debug("Batch applied",
			logger.Topic("batch"),
			zap.String("operation", string(kind)),
			zap.Int("batch", index),
			logger.Metric(float64(succeeded)))
	}
	return outcomes, nil
}

// Apply writes a diff to the target: updates first, then inserts, then
// deletes. The order keeps a half-applied run conservative, existing rows
// are corrected before new rows appear and nothing is removed until last.
func (w *BatchWriter) Apply(ctx context.Context, diff *DiffResult, source *RowSet, idField string) ([]BatchOutcome, error) {
	var outcomes []BatchOutcome
	field := strings.ToLower(idField)

	if len(diff.ToUpdate) > 0 {
		records := make([]dataset.Record, 0, len(diff.ToUpdate))
		for _, u := range diff.ToUpdate {
			records = append(records, u.Record)
		}
		batch, err := w.write(ctx, dataset.OpUpdate, records)
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
	}

	if len(diff.ToInsert) > 0 {
		records := make([]dataset.Record, 0, len(diff.ToInsert))
		for _, key := range diff.ToInsert {
			records = append(records, source.Rows[key])
		}
		batch, err := w.write(ctx, dataset.OpInsert, records)
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
	}

	if len(diff.ToDelete) > 0 {
		records := make([]dataset.Record, 0, len(diff.ToDelete))
		for _, key := range diff.ToDelete {
			records = append(records, dataset.KeyRecord(field, key))
		}
		batch, err := w.write(ctx, dataset.OpDelete, records)
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}

// Reload wipes the target and reinserts every source record. Delete
// failures are recorded in the ledger but do not stop the reload; the
// inserts still run so the target ends up carrying the source data even if
// stale rows linger.
func (w *BatchWriter) Reload(ctx context.Context, records []dataset.Record, keys []string, idField string) ([]BatchOutcome, error) {
	var outcomes []BatchOutcome
	field := strings.ToLower(idField)

	if len(keys) > 0 {
		deletes := make([]dataset.Record, 0, len(keys))
		for _, key := range keys {
			deletes = append(deletes, dataset.KeyRecord(field, key))
		}
		batch, err := w.write(ctx, dataset.OpDelete, deletes)
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
	}

	if len(records) > 0 {
		batch, err := w.write(ctx, dataset.OpInsert, records)
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}
