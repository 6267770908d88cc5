// Package dataset defines the contracts the sync engine uses to talk to
// tabular data sources and sinks.
//
// A dataset is anything that can describe its fields, stream its records,
// enumerate its keys, and accept batched writes. The engine never touches a
// concrete backend directly; it only sees the Table interface.
//
// # Implementations
//
// Three implementations live in this repository:
//
//   - SQLTable: a table in a MySQL or SQLite database reached through GORM.
//   - portal.FeatureTable: a remote feature-service table reached over HTTP
//     (see core/portal).
//   - MemTable: an in-memory table used by tests and small one-off jobs.
//
// # Records
//
// Records are flat maps from field name to scalar value. Values are the
// plain types the backends produce: string, int64, float64, bool,
// time.Time, or nil. Geometry, when present, is carried as an opaque JSON
// string under its field name and is never interpreted.
package dataset
