// Package repositories implements the fingerprint and metadata store over
// SQLite.
//
// Every entity instance is owned here; other engine components operate on
// references handed out by the reconciler and persist changes back through
// Save. Each Save is a single upsert statement, so a crash mid-write never
// corrupts previously committed rows.
package repositories
