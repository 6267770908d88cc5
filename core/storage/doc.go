// Package storage provides the object storage client used for changeset
// archival.
//
// Changeset files are written to local disk first; when storage is enabled
// they are additionally uploaded to a bucket so a fleet of sync jobs shares
// one audit trail. The Client interface wraps the Minio SDK and exists so
// tests can substitute a mock (see the mocks subpackage).
package storage
