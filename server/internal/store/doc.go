// Package store persists speed-bump records.
//
// Repository is the contract every backend satisfies. Three backends exist:
//
//   - Memory: an in-process map, optionally seeded with the demo records.
//   - SQLite: a local file database (modernc.org/sqlite, no cgo).
//   - Postgres: the hosted speed_bumps table over a pgx connection pool.
//
// Reads return records ordered by last_updated, newest first. Raw health and
// status columns are turned into a bump.Condition by the deployment's
// bump.Mode, so callers never see the variant that is not authoritative.
//
// When the connection parameters are missing, Open returns an Unconfigured
// repository whose every call fails with ErrNotConfigured, so the process
// can still start and report the problem.
package store
