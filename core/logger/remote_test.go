package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tablesync/core/dataset"
)

func TestRemoteCoreWritesLogRecord(t *testing.T) {
	table := dataset.NewMemTable("log", "message", nil)
	l := Attach(zap.NewNop(), NewRemoteCore(table, nil, zapcore.InfoLevel))

	l.Info("Sync completed",
		Topic("sync"),
		Code("COMPLETED"),
		Metric(42),
	)

	rec, ok := table.Get("Sync completed")
	assert.True(t, ok)
	assert.Equal(t, "INFO", rec["levelname"])
	assert.Equal(t, "sync", rec["topic"])
	assert.Equal(t, "COMPLETED", rec["code"])
	assert.Equal(t, 42.0, rec["metric"])
	assert.NotNil(t, rec["log_datetime"])
}

func TestRemoteCoreRespectsLevel(t *testing.T) {
	table := dataset.NewMemTable("log", "message", nil)
	l := Attach(zap.NewNop(), NewRemoteCore(table, nil, zapcore.WarnLevel))

	l.Info("below threshold")
	l.Warn("at threshold")

	assert.Equal(t, 1, table.Len())
	_, ok := table.Get("at threshold")
	assert.True(t, ok)
}

func TestRemoteCoreCarriesWithFields(t *testing.T) {
	table := dataset.NewMemTable("log", "message", nil)
	l := Attach(zap.NewNop(), NewRemoteCore(table, nil, zapcore.InfoLevel))

	l.With(Topic("schema")).Info("Schemas compatible", Metric(7))

	rec, ok := table.Get("Schemas compatible")
	assert.True(t, ok)
	assert.Equal(t, "schema", rec["topic"])
	assert.Equal(t, 7.0, rec["metric"])
}

func TestRemoteCoreSwallowsWriteFailure(t *testing.T) {
	l := Attach(zap.NewNop(), NewRemoteCore(&failingTable{}, zap.NewNop(), zapcore.InfoLevel))

	// Must not panic or error out
	l.Info("doomed event")
}

// failingTable rejects every write.
type failingTable struct{}

func (f *failingTable) Name() string     { return "failing" }
func (f *failingTable) KeyField() string { return "message" }

func (f *failingTable) Schema(ctx context.Context) (dataset.Schema, error) {
	return nil, nil
}

func (f *failingTable) Records(ctx context.Context) (dataset.Iterator, error) {
	return dataset.NewSliceIterator(nil), nil
}

func (f *failingTable) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *failingTable) WriteBatch(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) (int, error) {
	return 0, assert.AnError
}
