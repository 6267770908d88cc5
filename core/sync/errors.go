package sync

import (
	"fmt"
	"strings"

	"tablesync/core/dataset"
)

// ConfigurationError reports an invalid Spec. It is raised before any table
// is touched.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid sync configuration: " + e.Reason
}

// TypeConflict is one field present on both sides with incompatible types.
type TypeConflict struct {
	Field      string
	SourceType dataset.FieldType
	TargetType dataset.FieldType
}

// SchemaMismatchError reports why the schema gate rejected a sync. All
// problems are collected so one run surfaces every incompatibility at once.
type SchemaMismatchError struct {
	// MissingInTarget lists source fields the target lacks.
	MissingInTarget []string
	// MissingInSource lists target fields the source lacks.
	MissingInSource []string
	// TypeConflicts lists fields whose types disagree.
	TypeConflicts []TypeConflict
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.MissingInTarget) > 0 {
		parts = append(parts, fmt.Sprintf("fields missing in target: %s", strings.Join(e.MissingInTarget, ", ")))
	}
	if len(e.MissingInSource) > 0 {
		parts = append(parts, fmt.Sprintf("fields missing in source: %s", strings.Join(e.MissingInSource, ", ")))
	}
	for _, c := range e.TypeConflicts {
		parts = append(parts, fmt.Sprintf("field %s is %s in source but %s in target", c.Field, c.SourceType, c.TargetType))
	}
	if len(parts) == 0 {
		return "schemas do not match"
	}
	return "schemas do not match: " + strings.Join(parts, "; ")
}

// DuplicateKeyError reports a repeated id value in a loaded dataset. The
// diff cannot key rows unambiguously, so the load fails.
type DuplicateKeyError struct {
	Dataset string
	Field   string
	Key     string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q in field %s of %s", e.Key, e.Field, e.Dataset)
}

// MissingKeyFieldError reports a record without a usable id value.
type MissingKeyFieldError struct {
	Dataset string
	Field   string
}

func (e *MissingKeyFieldError) Error() string {
	return fmt.Sprintf("record in %s has no value for key field %s", e.Dataset, e.Field)
}

// BatchWriteError aggregates the failed batches of a run that otherwise ran
// to completion. It marks the run FAILED while the ledger keeps the per-batch
// detail.
type BatchWriteError struct {
	Failed []BatchOutcome
}

func (e *BatchWriteError) Error() string {
	indices := make([]string, 0, len(e.Failed))
	records := 0
	for _, o := range e.Failed {
		indices = append(indices, fmt.Sprintf("%s[%d]", o.Kind, o.BatchIndex))
		records += o.Attempted - o.Succeeded
	}
	return fmt.Sprintf("%d batch(es) failed (%s), %d record(s) not written",
		len(e.Failed), strings.Join(indices, ", "), records)
}
