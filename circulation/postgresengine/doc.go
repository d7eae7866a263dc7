// Package postgresengine implements the circulation persistence contract on PostgreSQL.
//
// Store reads rows, commits a circulation.ChangeSet in one READ COMMITTED transaction with
// optimistic version checks, looks up paid transactions, and writes best-effort notifications
// to an outbox table. It runs on pgxpool.Pool, sql.DB (lib/pq), or sqlx.DB, each optionally
// paired with a read replica that only serves reads asking for eventual consistency.
//
// All SQL is built with goqu's postgres dialect. The DDL is available through Schema.
package postgresengine
