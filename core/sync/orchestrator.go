package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tablesync/core/changeset"
	"tablesync/core/dataset"
	"tablesync/core/logger"
	"tablesync/core/portal"
	"tablesync/core/utils"
)

// Engine runs sync specs. One Engine serves many runs; it holds only the
// shared collaborators, never per-run state.
type Engine struct {
	Log *zap.Logger

	// Resolver opens sessions for specs that target a remote feature
	// service. Nil is fine when every spec carries its own Target table.
	Resolver *portal.Resolver

	// Changesets exports the per-run change record. Nil disables export.
	Changesets *changeset.Writer
}

// NewEngine builds an Engine.
func NewEngine(log *zap.Logger, resolver *portal.Resolver, changesets *changeset.Writer) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Log: log, Resolver: resolver, Changesets: changesets}
}

// Refresh runs one sync end to end and returns its full Result. The Result
// is returned for failed runs too; Result.Err carries the terminal error and
// Result.Outcomes whatever ledger the run accumulated before failing.
func (e *Engine) Refresh(ctx context.Context, spec Spec) *Result {
	started := time.Now()
	result := &Result{
		RunID:  uuid.NewString(),
		State:  StateStart,
		Method: spec.Method,
	}
	log := e.Log.With(zap.String("run_id", result.RunID))

	fail := func(err error) *Result {
		result.State = StateFailed
		result.Err = err
		result.Elapsed = time.Since(started)
		log.Error("Sync failed",
			logger.Topic("sync"),
			logger.Code("FAILED"),
			zap.Error(err))
		return result
	}

	if err := validateSpec(spec); err != nil {
		return fail(err)
	}

	target := spec.Target
	if spec.TargetService != "" {
		session, err := e.Resolver.Resolve(ctx, *spec.Credentials)
		if err != nil {
			return fail(err)
		}
		target = portal.NewFeatureTable(spec.TargetService, spec.IDField, session)
	}
	result.State = StateCredentialsResolved

	log.Info("Sync started",
		logger.Topic("sync"),
		logger.Code("STARTED"),
		zap.String("source", spec.Source.Name()),
		zap.String("target", target.Name()),
		zap.String("method", string(spec.Method)))

	sourceSchema, targetSchema, err := loadSchemas(ctx, spec.Source, target)
	if err != nil {
		return fail(err)
	}
	if _, ok := sourceSchema.Field(spec.IDField); !ok {
		return fail(&ConfigurationError{Reason: fmt.Sprintf("id field %q not present in source %s", spec.IDField, spec.Source.Name())})
	}
	if _, ok := targetSchema.Field(spec.IDField); !ok {
		return fail(&ConfigurationError{Reason: fmt.Sprintf("id field %q not present in target %s", spec.IDField, target.Name())})
	}
	if err := CompareSchemas(sourceSchema, targetSchema, spec.ExcludedFields); err != nil {
		log.Error("Schema gate rejected sync",
			logger.Topic("schema"),
			logger.Code("MISMATCH"),
			zap.Error(err))
		return fail(err)
	}
	result.State = StateSchemaValidated
	log.Info("Schemas compatible",
		logger.Topic("schema"),
		logger.Code("VALIDATED"),
		logger.Metric(float64(len(sourceSchema))))

	writer := NewBatchWriter(target, spec.ChunkSize, log)

	var outcomes []BatchOutcome
	switch spec.Method {
	case MethodTruncate:
		outcomes, err = e.runTruncate(ctx, spec, target, writer, log)
	case MethodCompare:
		outcomes, err = e.runCompare(ctx, spec, target, writer, sourceSchema, log)
	}
	result.Outcomes = outcomes
	tallyOutcomes(result)
	if err != nil {
		return fail(err)
	}

	if failed := result.FailedBatches(); len(failed) > 0 {
		return fail(&BatchWriteError{Failed: failed})
	}

	count, err := countRecords(ctx, target)
	if err != nil {
		log.Warn("Failed to count target records",
			logger.Topic("verify"),
			zap.Error(err))
	} else {
		result.RecordCount = count
		log.Info("Target record count",
			logger.Topic("verify"),
			logger.Code("COUNTED"),
			logger.Metric(float64(count)))
	}

	result.State = StateDone
	result.Elapsed = time.Since(started)
	log.Info("Sync completed",
		logger.Topic("sync"),
		logger.Code("COMPLETED"),
		zap.Int("inserts", result.Inserts),
		zap.Int("updates", result.Updates),
		zap.Int("deletes", result.Deletes),
		logger.Metric(result.Elapsed.Seconds()))
	return result
}

// runTruncate wipes the target and reloads every source record.
func (e *Engine) runTruncate(ctx context.Context, spec Spec, target dataset.Table, writer *BatchWriter, log *zap.Logger) ([]BatchOutcome, error) {
	var (
		records []dataset.Record
		keys    []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = loadAll(gctx, spec.Source)
		return err
	})
	g.Go(func() error {
		var err error
		keys, err = target.Keys(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("Reloading target",
		logger.Topic("truncate"),
		logger.Code("LOADED"),
		zap.Int("source_records", len(records)),
		zap.Int("target_records", len(keys)))

	return writer.Reload(ctx, records, keys, spec.IDField)
}

// runCompare diffs both sides and applies only the changes.
func (e *Engine) runCompare(ctx context.Context, spec Spec, target dataset.Table, writer *BatchWriter, sourceSchema dataset.Schema, log *zap.Logger) ([]BatchOutcome, error) {
	var source, current *RowSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = LoadRowSet(gctx, spec.Source, spec.IDField)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = LoadRowSet(gctx, target, spec.IDField)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := ComparedFields(sourceSchema, spec.IDField, spec.ExcludedFields)
	diff := Diff(source, current, fields)

	log.Info("Comparison complete",
		logger.Topic("compare"),
		logger.Code("DIFFED"),
		zap.Int("inserts", len(diff.ToInsert)),
		zap.Int("updates", len(diff.ToUpdate)),
		zap.Int("deletes", len(diff.ToDelete)))

	if diff.Empty() {
		log.Info("Datasets already in sync",
			logger.Topic("compare"),
			logger.Code("NO_CHANGES"))
		return nil, nil
	}

	e.exportChangeset(ctx, target.Name(), diff, source, current, fields, spec.IDField, log)

	return writer.Apply(ctx, diff, source, spec.IDField)
}

// exportChangeset records the diff as a CSV. Export is best effort: a
// failure is logged and the sync carries on.
func (e *Engine) exportChangeset(ctx context.Context, targetName string, diff *DiffResult, source, current *RowSet, fields []string, idField string, log *zap.Logger) {
	if e.Changesets == nil {
		return
	}

	header := append([]string{"operation", strings.ToLower(idField)}, fields...)
	var rows [][]string

	row := func(op, key string, rec dataset.Record) []string {
		out := make([]string, 0, len(header))
		out = append(out, op, key)
		for _, f := range fields {
			if rec == nil {
				out = append(out, "")
				continue
			}
			out = append(out, utils.ToString(rec[f]))
		}
		return out
	}

	for _, key := range diff.ToInsert {
		rows = append(rows, row("insert", key, source.Rows[key]))
	}
	for _, u := range diff.ToUpdate {
		rows = append(rows, row("update", u.Key, u.Record))
	}
	for _, key := range diff.ToDelete {
		rows = append(rows, row("delete", key, current.Rows[key]))
	}

	path, err := e.Changesets.Write(ctx, targetName, header, rows)
	if err != nil {
		log.Warn("Failed to export changeset",
			logger.Topic("changeset"),
			zap.Error(err))
		return
	}
	log.Info("Changeset exported",
		logger.Topic("changeset"),
		logger.Code("EXPORTED"),
		zap.String("path", path),
		logger.Metric(float64(len(rows))))
}

// validateSpec rejects specs the engine cannot run before any collaborator
// is touched.
func validateSpec(spec Spec) error {
	if spec.Source == nil {
		return &ConfigurationError{Reason: "source table is required"}
	}
	if spec.Target == nil && spec.TargetService == "" {
		return &ConfigurationError{Reason: "either a target table or a target service URL is required"}
	}
	if spec.Target != nil && spec.TargetService != "" {
		return &ConfigurationError{Reason: "target table and target service URL are mutually exclusive"}
	}
	if spec.TargetService != "" && spec.Credentials == nil {
		return &ConfigurationError{Reason: "a target service requires credentials"}
	}
	if spec.IDField == "" {
		return &ConfigurationError{Reason: "id field is required"}
	}
	switch spec.Method {
	case MethodTruncate, MethodCompare:
	default:
		return &ConfigurationError{Reason: "method must be TRUNCATE or COMPARE"}
	}
	if spec.ChunkSize < 0 {
		return &ConfigurationError{Reason: "chunk size cannot be negative"}
	}
	return nil
}

// loadSchemas introspects both tables concurrently.
func loadSchemas(ctx context.Context, source, target dataset.Table) (dataset.Schema, dataset.Schema, error) {
	var src, tgt dataset.Schema
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src, err = source.Schema(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tgt, err = target.Schema(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

// tallyOutcomes folds the ledger into per-operation success totals.
func tallyOutcomes(result *Result) {
	for _, o := range result.Outcomes {
		switch o.Kind {
		case dataset.OpInsert:
			result.Inserts += o.Succeeded
		case dataset.OpUpdate:
			result.Updates += o.Succeeded
		case dataset.OpDelete:
			result.Deletes += o.Succeeded
		}
	}
}

// countRecords measures the target after the run.
func countRecords(ctx context.Context, target dataset.Table) (int, error) {
	keys, err := target.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
