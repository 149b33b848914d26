// Package postgresengine provides the Postgres-backed loan store.
//
// It supports pgxpool.Pool, database/sql and sqlx connections through
// internal adapters, builds all SQL with goqu, and implements the
// correctness-critical reservation as one conditional INSERT statement so
// that concurrent create-loan requests can never over-book a resource.
package postgresengine
