// Package sync implements the dataset synchronization engine: the schema
// compatibility gate, the in-memory keyed row sets, the field-level diff, the
// chunked batch writer with its partial-failure ledger, and the orchestrator
// that runs one sync end to end.
//
// A sync moves one source table into one target table by one of two methods.
// TRUNCATE wipes the target and reloads every source record. COMPARE loads
// both sides keyed by the id field, diffs them field by field, and writes
// only the inserts, updates and deletes needed to reconcile the target.
//
// Both methods share the same guarantees: no write reaches the target before
// the schema gate passes, batches are applied in a stable order with stable
// indices, and a failed batch never stops the remaining batches from being
// attempted. The Result of a run records the outcome of every batch so a
// partially failed sync is fully accountable.
package sync
