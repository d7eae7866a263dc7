// Package postgreswrapper opens a Postgres backed store for integration tests.
//
// The adapter is selected by ADAPTER_TYPE (pgxpool, sqldb or sqlx) and the database by CIRCULATION_TEST_DSN.
// Tests using it are skipped when no DSN is set.
package postgreswrapper
