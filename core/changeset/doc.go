// Package changeset records what each sync run changed: a timestamped CSV
// per run, optional archival to object storage, and pruning of old files.
package changeset
