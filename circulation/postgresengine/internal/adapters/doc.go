// Package adapters lets the circulation Postgres store run on pgxpool.Pool, sql.DB, or sqlx.DB.
//
// Every adapter routes reads to an optional replica only when the context asks for
// circulation.EventualConsistency. Writes and transactions always go to the primary.
package adapters
