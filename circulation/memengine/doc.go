// Package memengine provides an in-memory circulation.Store.
//
// Apply works on a copy of the state and only swaps it in when every write of the ChangeSet succeeded,
// so it honors the same all-or-nothing and version-check contract as the Postgres engine.
// It is meant for tests and single-process demos.
package memengine
