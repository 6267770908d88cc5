package logger

import (
	"context"
	"math"
	"time"

	"tablesync/core/dataset"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// remoteWriteTimeout bounds a single log-table append so a slow portal can
// never stall the run it is reporting on.
const remoteWriteTimeout = 10 * time.Second

// remoteCore forwards log entries to a remote structured log table. The
// table must carry the fields log_datetime, levelname, topic, code, message
// and metric. Sends are fire-and-forget: a failed append is reported on the
// fallback logger and otherwise swallowed, so logging can never abort a
// sync.
type remoteCore struct {
	zapcore.LevelEnabler
	table    dataset.Table
	fallback *zap.Logger
	with     []zapcore.Field
}

// NewRemoteCore returns a zapcore.Core that appends entries at or above min
// to the given log table. Combine it with an existing logger via Attach.
func NewRemoteCore(table dataset.Table, fallback *zap.Logger, min zapcore.LevelEnabler) zapcore.Core {
	return &remoteCore{LevelEnabler: min, table: table, fallback: fallback}
}

// Attach tees every entry of l into core as well.
func Attach(l *zap.Logger, core zapcore.Core) *zap.Logger {
	return l.WithOptions(zap.WrapCore(func(existing zapcore.Core) zapcore.Core {
		return zapcore.NewTee(existing, core)
	}))
}

func (c *remoteCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.with = append(append([]zapcore.Field(nil), c.with...), fields...)
	return &clone
}

func (c *remoteCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *remoteCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	rec := dataset.Record{
		"log_datetime": ent.Time.UTC(),
		"levelname":    ent.Level.CapitalString(),
		"message":      ent.Message,
	}
	for _, f := range c.with {
		applyField(rec, f)
	}
	for _, f := range fields {
		applyField(rec, f)
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	if _, err := c.table.WriteBatch(ctx, dataset.OpInsert, []dataset.Record{rec}); err != nil {
		if c.fallback != nil {
			c.fallback.Warn("remote log write failed", zap.Error(err))
		}
	}
	return nil
}

func (c *remoteCore) Sync() error { return nil }

// applyField copies the event fields the log table knows about.
func applyField(rec dataset.Record, f zapcore.Field) {
	switch f.Key {
	case KeyTopic, KeyCode:
		rec[f.Key] = f.String
	case KeyMetric:
		switch f.Type {
		case zapcore.Float64Type:
			rec[f.Key] = math.Float64frombits(uint64(f.Integer))
		case zapcore.Int64Type:
			rec[f.Key] = float64(f.Integer)
		}
	}
}
