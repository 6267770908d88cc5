package sync

import (
	"time"

	"tablesync/core/dataset"
	"tablesync/core/portal"
)

// Method selects how a sync reconciles the target with the source.
type Method string

const (
	// MethodTruncate wipes the target and reloads every source record.
	MethodTruncate Method = "TRUNCATE"
	// MethodCompare diffs both sides by key and writes only the changes.
	MethodCompare Method = "COMPARE"
)

// State is the phase a sync run has reached. Runs move strictly forward;
// a failure freezes the run at FAILED with the last good phase recorded in
// the error.
type State string

const (
	StateStart               State = "START"
	StateCredentialsResolved State = "CREDENTIALS_RESOLVED"
	StateSchemaValidated     State = "SCHEMA_VALIDATED"
	StateDone                State = "DONE"
	StateFailed              State = "FAILED"
)

// RowSet is a dataset loaded into memory and keyed by the id field. Keys
// preserves first-seen order for deterministic iteration; Rows is the lookup
// index.
type RowSet struct {
	Keys []string
	Rows map[string]dataset.Record
}

// Len returns the number of rows in the set.
func (rs *RowSet) Len() int { return len(rs.Keys) }

// Update pairs a key with the full source record that should replace the
// target's record under that key.
type Update struct {
	Key    string
	Record dataset.Record
}

// DiffResult is the outcome of comparing source against target. The three
// lists partition the work: every key appears in at most one of them.
type DiffResult struct {
	// ToInsert holds source keys absent from the target, in sorted order.
	ToInsert []string
	// ToUpdate holds keys present on both sides whose compared fields
	// differ, in sorted key order.
	ToUpdate []Update
	// ToDelete holds target keys absent from the source, in sorted order.
	ToDelete []string
}

// Empty reports whether the diff carries no work.
func (d *DiffResult) Empty() bool {
	return len(d.ToInsert) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// BatchOutcome is one entry of the partial-failure ledger: what one batch
// attempted and what came of it.
type BatchOutcome struct {
	// BatchIndex numbers the batch within its operation, starting at 0.
	BatchIndex int
	// Kind is the operation the batch carried.
	Kind dataset.OperationKind
	// Attempted is how many records the batch carried.
	Attempted int
	// Succeeded is how many records the backend confirmed.
	Succeeded int
	// Err is nil for a fully successful batch.
	Err error
}

// Spec describes one sync run.
type Spec struct {
	// Source is the table records are read from.
	Source dataset.Table

	// Target is the table written to. Exactly one of Target and
	// TargetService must be set.
	Target dataset.Table

	// TargetService is the URL of a remote feature-service table to sync
	// into. When set, Credentials must resolve and the table is opened
	// through the portal.
	TargetService string

	// Credentials authenticate access to TargetService.
	Credentials *portal.CredentialSpec

	// Method selects TRUNCATE or COMPARE.
	Method Method

	// IDField is the key field used for matching, updating and deleting.
	IDField string

	// ChunkSize caps records per write batch. Zero means the default.
	ChunkSize int

	// ExcludedFields are skipped by the schema gate and the diff, on top
	// of the built-in tracking field exclusions.
	ExcludedFields []string
}

// Result is the full account of one sync run.
type Result struct {
	// RunID uniquely identifies the run across logs and changesets.
	RunID string

	// State is the phase the run ended in: DONE or FAILED.
	State State

	// Method echoes the method that ran.
	Method Method

	// Outcomes is the batch ledger in application order.
	Outcomes []BatchOutcome

	// Inserts, Updates and Deletes count the records confirmed written,
	// by operation.
	Inserts int
	Updates int
	Deletes int

	// RecordCount is the target's record count after the run, when the
	// run got far enough to measure it.
	RecordCount int

	// Elapsed is the wall time of the run.
	Elapsed time.Duration

	// Err is the run's terminal error, nil for a clean DONE.
	Err error
}

// FailedBatches returns the ledger entries that carry an error.
func (r *Result) FailedBatches() []BatchOutcome {
	var failed []BatchOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
