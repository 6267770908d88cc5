// Package portal implements the remote feature-service collaborator: token
// based authentication against a portal and a dataset.Table backed by a
// feature-service table reached over HTTP.
//
// # Credentials
//
// A caller authenticates with exactly one of two forms: a named profile
// stored on the machine, or an explicit portal URL plus username and
// password. CredentialSpec is the tagged variant covering both; Resolver
// validates it exhaustively, exchanges it for a token, and caches the
// resulting session per portal identity so repeated syncs against the same
// portal reuse one login.
//
// # Wire protocol
//
// The feature-service endpoints used are a small, stable subset:
//
//	GET  {table}?f=json                     describe fields
//	GET  {table}/query?where=1=1&f=json     read records / enumerate keys
//	POST {table}/applyEdits                 batched adds and updates
//	POST {table}/deleteFeatures             batched deletes by where clause
//
// applyEdits reports success per record; a batch with any failed record
// surfaces as an error while the succeeded count remains accurate, which is
// what the engine's partial-failure ledger needs.
package portal
