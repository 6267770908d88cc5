// Package logger provides a structured logging facility based on Zap.
//
// Sync runs emit events with a fixed shape: a topic (subject area), a code
// (outcome), a message, and an optional metric. The Topic, Code and Metric
// helpers attach those fields so the shape stays consistent across the
// codebase.
//
// # Remote log table
//
// Besides the local sinks (stderr, optional file), entries can be mirrored
// to a remote structured log table through NewRemoteCore. The remote sink
// is strictly fire-and-forget: append failures surface as a local warning
// and never propagate to the caller, so an unreachable log table cannot
// fail a sync.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Schema check passed", logger.Topic("SCHEMA"), logger.Code("PASS"))
//
//	// Mirror Info+ events to a portal-hosted log table:
//	log = logger.Attach(log, logger.NewRemoteCore(logTable, log, zapcore.InfoLevel))
package logger
