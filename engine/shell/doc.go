// Package shell holds the plumbing every engine component shares:
// the read-decide-apply Runner, optimistic concurrency retry with exponential backoff,
// handler results, and the logging, metrics, and tracing helpers around them.
package shell
