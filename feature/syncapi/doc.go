// Package syncapi exposes the sync engine over HTTP: one endpoint to run a
// sync and one to check service health. Requests name a database table as
// the source and either a database table or a remote feature-service URL as
// the target; the service wires the tables up and hands the run to the
// engine.
package syncapi
